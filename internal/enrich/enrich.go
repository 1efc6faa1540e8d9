// Package enrich produces per-language AI summaries for clusters. A summary
// is built from the cluster's most recent timeline entries, through the LLM
// provider when one is configured and through a deterministic fallback
// otherwise. Summaries are versioned: replacing one flips the previous row
// to non-current instead of overwriting it.
package enrich

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/llm"
)

const (
	DefaultRecentUpdates = 3
	DefaultMaxClusters   = 50
	DefaultWindowHours   = 72
)

const summaryPrompt = `You are summarizing an evolving news story for a reader catching up.

Recent developments, newest first:
%s

Write in %s. Respond with ONLY this JSON:
{"ai_title": "A short factual headline", "ai_summary": "2-4 sentences covering what happened and what changed"}`

// Options configures an Enricher. Zero values fall back to defaults.
type Options struct {
	UseProvider   bool
	RecentUpdates int
	MaxClusters   int
	WindowHours   int
	Throttle      time.Duration
	Model         string
}

// Result holds the results of an enrichment sweep.
type Result struct {
	SummariesCreated int
	Skipped          int
	Errors           int
}

// Enricher builds cluster summaries.
type Enricher struct {
	db       *database.DB
	provider llm.Provider
	opts     Options
}

// NewEnricher creates an enricher. The provider may be nil; summaries then
// come from the deterministic path only.
func NewEnricher(db *database.DB, provider llm.Provider, opts Options) *Enricher {
	if opts.RecentUpdates <= 0 {
		opts.RecentUpdates = DefaultRecentUpdates
	}
	if opts.MaxClusters <= 0 {
		opts.MaxClusters = DefaultMaxClusters
	}
	if opts.WindowHours <= 0 {
		opts.WindowHours = DefaultWindowHours
	}
	if opts.Model == "" {
		opts.Model = "deterministic"
	}
	return &Enricher{db: db, provider: provider, opts: opts}
}

// EnrichCluster builds and stores a current summary for (cluster, lang).
// It returns (nil, nil) when the cluster already has a current summary in
// that language or has no timeline entries to summarize.
func (e *Enricher) EnrichCluster(ctx context.Context, clusterID, lang string) (*database.ClusterAI, error) {
	existing, err := e.db.GetCurrentSummary(clusterID, lang)
	if err != nil {
		return nil, fmt.Errorf("checking existing summary: %w", err)
	}
	if existing != nil {
		return nil, nil
	}

	updates, err := e.db.GetRecentUpdates(clusterID, e.opts.RecentUpdates)
	if err != nil {
		return nil, fmt.Errorf("loading timeline: %w", err)
	}
	if len(updates) == 0 {
		return nil, nil
	}

	title, summary := e.summarize(ctx, updates, lang)

	row := database.ClusterAI{
		ClusterID: clusterID,
		Lang:      lang,
		AITitle:   title,
		AISummary: summary,
		AIDetails: formatDetails(updates),
		Model:     e.opts.Model,
		IsCurrent: true,
		CreatedAt: time.Now().UTC(),
	}
	id, err := e.db.ReplaceCurrentSummary(row)
	if err != nil {
		return nil, fmt.Errorf("storing summary: %w", err)
	}
	if id == 0 {
		// Another writer got there first.
		return nil, nil
	}
	row.ID = id
	return &row, nil
}

// EnrichRecent sweeps recently active clusters and enriches each one in
// every given language, throttled between provider calls.
func (e *Enricher) EnrichRecent(ctx context.Context, langs []string) *Result {
	r := &Result{}

	since := time.Now().UTC().Add(-time.Duration(e.opts.WindowHours) * time.Hour)
	clusters, err := e.db.GetRecentClusters(since, e.opts.MaxClusters)
	if err != nil {
		log.Printf("Error loading recent clusters: %v", err)
		r.Errors++
		return r
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if e.opts.Throttle > 0 {
		limiter = rate.NewLimiter(rate.Every(e.opts.Throttle), 1)
	}

	for _, cluster := range clusters {
		for _, lang := range langs {
			if err := limiter.Wait(ctx); err != nil {
				return r
			}
			row, err := e.EnrichCluster(ctx, cluster.ID, lang)
			switch {
			case err != nil:
				log.Printf("Error enriching cluster %s (%s): %v", cluster.ID, lang, err)
				r.Errors++
			case row == nil:
				r.Skipped++
			default:
				r.SummariesCreated++
			}
		}
	}

	log.Printf("Enrichment complete: %d summaries created, %d skipped, %d errors",
		r.SummariesCreated, r.Skipped, r.Errors)
	return r
}

// summarize asks the provider for a title and summary, falling back to the
// deterministic rendering on any failure. Updates arrive newest first.
func (e *Enricher) summarize(ctx context.Context, updates []database.ClusterUpdate, lang string) (string, string) {
	fallbackTitle := updates[0].Claim
	fallbackSummary := formatBullets(updates)

	if !e.opts.UseProvider || e.provider == nil {
		return fallbackTitle, fallbackSummary
	}

	prompt := fmt.Sprintf(summaryPrompt, formatUpdates(updates), lang)
	response, err := e.provider.Generate(ctx, prompt, 1024)
	if err != nil {
		log.Printf("Summary generation failed, using fallback: %v", err)
		return fallbackTitle, fallbackSummary
	}

	parsed := llm.ParseJSONResponse(response)
	if parsed == nil {
		return fallbackTitle, fallbackSummary
	}
	title := getStr(parsed, "ai_title", fallbackTitle)
	summary := getStr(parsed, "ai_summary", fallbackSummary)
	return title, summary
}

func formatUpdates(updates []database.ClusterUpdate) string {
	var b strings.Builder
	for _, u := range updates {
		stance := database.StanceNeutral
		if u.Stance != nil {
			stance = *u.Stance
		}
		fmt.Fprintf(&b, "- [%s] %s (%s): %s\n",
			u.HappenedAt.Format("2006-01-02 15:04"), u.SourceID, stance, u.Claim)
	}
	return b.String()
}

func formatBullets(updates []database.ClusterUpdate) string {
	lines := make([]string, 0, len(updates))
	for _, u := range updates {
		text := u.Summary
		if text == "" {
			text = u.Claim
		}
		lines = append(lines, fmt.Sprintf("• %s: %s", u.SourceID, text))
	}
	return strings.Join(lines, "\n")
}

// formatDetails renders the gathered timeline as markdown for the cluster
// view.
func formatDetails(updates []database.ClusterUpdate) string {
	var b strings.Builder
	for _, u := range updates {
		fmt.Fprintf(&b, "## %s\n\n", u.Claim)
		fmt.Fprintf(&b, "*%s, %s*\n\n", u.SourceID, u.HappenedAt.Format("January 2, 2006"))
		if u.Summary != "" {
			b.WriteString(u.Summary)
			b.WriteString("\n\n")
		}
		if u.Evidence != "" {
			fmt.Fprintf(&b, "[Source](%s)\n\n", u.Evidence)
		}
	}
	return strings.TrimSpace(b.String())
}

func getStr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return fallback
}
