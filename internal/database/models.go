package database

import "time"

// Article is a normalized article as produced by ingestion.
// ClusterID is the only field this system mutates after insert, and it is
// write-once: once set it is never reassigned.
type Article struct {
	ID           string
	SourceID     string
	URL          string
	CanonicalURL string
	Title        string
	Snippet      string
	FullText     *string
	Language     string // BCP-47
	PublishedAt  time.Time
	FetchedAt    time.Time
	ContentHash  string
	ClusterID    *string
}

// Cluster groups articles believed to report the same evolving story.
type Cluster struct {
	ID            string
	SeedArticleID string
	RepArticleID  string
	Fingerprint   string
	FirstSeen     time.Time
	LastSeen      time.Time
	Size          int
}

// Stance labels how an article relates to its cluster's claim.
const (
	StanceSupports    = "supports"
	StanceContradicts = "contradicts"
	StanceNeutral     = "neutral"
)

// ClusterUpdate is one article's timeline entry within a cluster.
// Immutable once written; one row per (cluster_id, article_id).
type ClusterUpdate struct {
	ClusterID  string
	ArticleID  string
	HappenedAt time.Time
	Stance     *string
	Claim      string
	Evidence   string
	Summary    string
	SourceID   string
	Lang       string
}

// ClusterAI is a versioned per-language AI summary of a cluster.
// At most one row per (cluster_id, lang) has IsCurrent=true, enforced by a
// partial unique index.
type ClusterAI struct {
	ID        int64
	ClusterID string
	Lang      string
	AITitle   string
	AISummary string
	AIDetails string
	Model     string
	PivotHash *string
	IsCurrent bool
	CreatedAt time.Time
}

// SimilarArticle is one fuzzy-search candidate: an article within the recency
// window annotated with its similarity to the query text.
type SimilarArticle struct {
	ArticleID  string
	Similarity float64
	ClusterID  *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Articles           int
	AssignedArticles   int
	Clusters           int
	TimelineEntries    int
	CurrentSummaries   int
	Languages          int
	CachedTranslations int
}
