// Package pipeline orchestrates one end-to-end cycle: ingest feeds, fetch
// full text, enrich clusters with summaries, pretranslate them for every
// market.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/newsbabel/newsbabel/internal/cluster"
	"github.com/newsbabel/newsbabel/internal/config"
	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/enrich"
	"github.com/newsbabel/newsbabel/internal/fetch"
	"github.com/newsbabel/newsbabel/internal/ingest"
	"github.com/newsbabel/newsbabel/internal/llm"
	"github.com/newsbabel/newsbabel/internal/pretranslate"
	"github.com/newsbabel/newsbabel/internal/translate"
	"github.com/newsbabel/newsbabel/internal/update"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Pipeline wires the stages together from one config.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	provider  llm.Provider
	clusterer *cluster.Clusterer
	scheduler *pretranslate.Scheduler
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	summ := cfg.Summarization
	provider := llm.CreateProvider(
		summ.Provider,
		summ.Model,
		summ.OllamaURL,
		summ.OpenAIModel,
		summ.APIKeyEnv,
	)

	extractor := update.NewExtractor(cfg.Stance.Mode, provider)
	clusterer := cluster.NewClusterer(db, extractor, cluster.Options{
		Enabled:       cfg.Clustering.Enabled,
		Threshold:     cfg.Clustering.SimilarityThreshold,
		WindowHours:   cfg.Clustering.WindowHours,
		MaxCandidates: cfg.Clustering.MaxCandidates,
	})

	engine := translate.NewEngine(db, provider, translate.Options{
		ChunkChars:  cfg.Translation.ChunkChars,
		MaxDocChars: cfg.Translation.MaxDocumentChars,
		MemoryCache: cfg.Translation.MemoryCacheSize,
		MaxTokens:   summ.MaxTokens,
	})
	scheduler := pretranslate.NewScheduler(db, engine, cfg.EnabledMarkets(), pretranslate.Options{
		WindowHours:  cfg.Pretranslate.WindowHours,
		MaxClusters:  cfg.Pretranslate.MaxClusters,
		Workers:      cfg.Pretranslate.Workers,
		JobTimeout:   time.Duration(cfg.Pretranslate.JobTimeoutSeconds) * time.Second,
		ProcessedCap: cfg.Pretranslate.ProcessedCap,
	})

	return &Pipeline{
		cfg:       cfg,
		db:        db,
		provider:  provider,
		clusterer: clusterer,
		scheduler: scheduler,
	}
}

// Run executes the full 4-step pipeline.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}
	r.Steps = append(r.Steps, p.runIngest(ctx))
	r.Steps = append(r.Steps, p.runFetch(ctx))
	r.Steps = append(r.Steps, p.runEnrich(ctx))
	r.Steps = append(r.Steps, p.runPretranslate(ctx))
	return r
}

func (p *Pipeline) runIngest(ctx context.Context) StepResult {
	log.Println("Step 1/4: Ingesting feeds...")
	in := ingest.NewIngester(p.db, p.clusterer, p.cfg.Sources.Feeds)
	result := in.Run(ctx)
	return StepResult{
		Name: "Ingest",
		Summary: fmt.Sprintf("%d feeds polled, %d new articles (%d seen, %d errors)",
			result.FeedsPolled, result.ArticlesNew, result.ArticlesSeen, result.Errors),
	}
}

func (p *Pipeline) runFetch(ctx context.Context) StepResult {
	log.Println("Step 2/4: Fetching article content...")
	fetcher := fetch.NewContentFetcher(p.db, 15*time.Second, 0)
	result := fetcher.FetchMissingContent(ctx)
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d articles, %d failed", result.Fetched, result.Failed),
	}
}

func (p *Pipeline) runEnrich(ctx context.Context) StepResult {
	log.Println("Step 3/4: Enriching clusters...")
	model := ""
	if p.cfg.Enrichment.UseProvider && p.provider != nil {
		model = p.cfg.Summarization.Model
	}
	enricher := enrich.NewEnricher(p.db, p.provider, enrich.Options{
		UseProvider:   p.cfg.Enrichment.UseProvider,
		RecentUpdates: p.cfg.Enrichment.RecentUpdates,
		MaxClusters:   p.cfg.Enrichment.MaxClusters,
		WindowHours:   p.cfg.Enrichment.WindowHours,
		Throttle:      time.Duration(p.cfg.Enrichment.ThrottleMS) * time.Millisecond,
		Model:         model,
	})
	result := enricher.EnrichRecent(ctx, p.pivotLangs())
	return StepResult{
		Name: "Enrich",
		Summary: fmt.Sprintf("%d summaries created, %d skipped, %d errors",
			result.SummariesCreated, result.Skipped, result.Errors),
	}
}

func (p *Pipeline) runPretranslate(ctx context.Context) StepResult {
	log.Println("Step 4/4: Pretranslating summaries...")
	sum := p.scheduler.RunCycle(ctx)
	return StepResult{
		Name: "Pretranslate",
		Summary: fmt.Sprintf("%d clusters scanned, %d jobs, %d translations inserted, %d fresh, %d failed",
			sum.ClustersScanned, sum.JobsCreated, sum.TranslationsInserted, sum.SkippedFresh, sum.Failed),
	}
}

// pivotLangs lists each enabled market's pivot language once.
func (p *Pipeline) pivotLangs() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, m := range p.cfg.EnabledMarkets() {
		if m.PivotLang != "" && !seen[m.PivotLang] {
			seen[m.PivotLang] = true
			langs = append(langs, m.PivotLang)
		}
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return langs
}
