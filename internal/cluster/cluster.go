// Package cluster assigns incoming articles to evolving story clusters using
// the store's fuzzy text-similarity search, and appends a timeline entry for
// every assignment.
package cluster

import (
	"context"
	"log"
	"time"

	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/update"
)

const (
	DefaultThreshold     = 0.55
	DefaultWindowHours   = 72
	DefaultMaxCandidates = 10
)

// Options configures a Clusterer. Zero values fall back to defaults;
// Enabled must be set explicitly.
type Options struct {
	Enabled       bool
	Threshold     float64
	WindowHours   int
	MaxCandidates int
}

// Clusterer assigns articles to clusters. Assignment is best-effort: any
// failure is logged and surfaces as no assignment, never as an error, so
// ingestion is never aborted.
type Clusterer struct {
	db        *database.DB
	extractor *update.Extractor
	opts      Options
}

// NewClusterer creates a new article clusterer.
func NewClusterer(db *database.DB, extractor *update.Extractor, opts Options) *Clusterer {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.WindowHours <= 0 {
		opts.WindowHours = DefaultWindowHours
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Clusterer{db: db, extractor: extractor, opts: opts}
}

// AssignCluster assigns the article to an existing or new cluster and
// records its timeline entry. Returns the cluster ID, or "" when clustering
// is disabled or assignment failed.
func (c *Clusterer) AssignCluster(ctx context.Context, article database.Article, sourceID string) string {
	if article.ClusterID != nil && *article.ClusterID != "" {
		return *article.ClusterID
	}
	if !c.opts.Enabled {
		return ""
	}

	clusterID, reused, err := c.matchCluster(article)
	if err != nil {
		log.Printf("Cluster matching failed for %s: %v", article.ID, err)
		return ""
	}

	fingerprint := database.Fingerprint(article.Title, article.Snippet)
	if err := c.db.UpsertCluster(clusterID, article.ID, fingerprint, article.PublishedAt); err != nil {
		log.Printf("Cluster upsert failed for %s: %v", article.ID, err)
		return ""
	}

	if err := c.db.SetArticleCluster(article.ID, clusterID); err != nil {
		log.Printf("Cluster assignment write failed for %s: %v", article.ID, err)
		return ""
	}

	c.appendTimelineEntry(ctx, article, clusterID, sourceID)

	if reused {
		log.Printf("Article %s joined cluster %s", article.ID, clusterID)
	} else {
		log.Printf("Article %s seeded new cluster", article.ID)
	}
	return clusterID
}

// matchCluster returns the best existing cluster for the article, or the
// article's own ID for a new singleton cluster.
func (c *Clusterer) matchCluster(article database.Article) (string, bool, error) {
	query := article.Title
	if article.FullText != nil && *article.FullText != "" {
		query += " " + *article.FullText
	} else {
		query += " " + article.Snippet
	}

	since := time.Now().Add(-time.Duration(c.opts.WindowHours) * time.Hour)
	candidates, err := c.db.FindSimilar(query, article.ID, since, c.opts.MaxCandidates)
	if err != nil {
		return "", false, err
	}

	// Candidates arrive best-first; take the first one over the threshold
	// that already belongs to a cluster.
	for _, cand := range candidates {
		if cand.Similarity < c.opts.Threshold {
			break
		}
		if cand.ClusterID != nil && *cand.ClusterID != "" {
			return *cand.ClusterID, true, nil
		}
	}

	return article.ID, false, nil
}

func (c *Clusterer) appendTimelineEntry(ctx context.Context, article database.Article, clusterID, sourceID string) {
	u := c.extractor.Extract(ctx, article)

	inserted, err := c.db.InsertClusterUpdate(database.ClusterUpdate{
		ClusterID:  clusterID,
		ArticleID:  article.ID,
		HappenedAt: article.PublishedAt,
		Stance:     u.Stance,
		Claim:      u.Claim,
		Evidence:   u.Evidence,
		Summary:    u.Summary,
		SourceID:   sourceID,
		Lang:       u.Lang,
	})
	if err != nil {
		log.Printf("Timeline insert failed for %s: %v", article.ID, err)
		return
	}
	if !inserted {
		// Another worker already recorded this article's entry.
		log.Printf("Timeline entry for %s already present", article.ID)
	}
}
