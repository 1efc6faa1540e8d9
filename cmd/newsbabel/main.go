package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsbabel/newsbabel/internal/cluster"
	"github.com/newsbabel/newsbabel/internal/config"
	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/enrich"
	"github.com/newsbabel/newsbabel/internal/fetch"
	"github.com/newsbabel/newsbabel/internal/ingest"
	"github.com/newsbabel/newsbabel/internal/llm"
	"github.com/newsbabel/newsbabel/internal/pipeline"
	"github.com/newsbabel/newsbabel/internal/pretranslate"
	"github.com/newsbabel/newsbabel/internal/server"
	"github.com/newsbabel/newsbabel/internal/translate"
	"github.com/newsbabel/newsbabel/internal/update"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsbabel",
	Short:   "Multi-language story clustering for news feeds",
	Long:    "newsbabel ingests news feeds, clusters articles into evolving stories, summarizes each story, and pretranslates the summaries into every market language.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(pretranslateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsbabel", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsbabel/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, markets, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Articles:")
		fmt.Printf("  Total: %d\n", stats.Articles)
		fmt.Printf("  In clusters: %d\n", stats.AssignedArticles)
		fmt.Println("\nClusters:")
		fmt.Printf("  Total: %d\n", stats.Clusters)
		fmt.Printf("  Timeline entries: %d\n", stats.TimelineEntries)
		fmt.Println("\nSummaries:")
		fmt.Printf("  Current: %d\n", stats.CurrentSummaries)
		fmt.Printf("  Languages: %d\n", stats.Languages)
		fmt.Printf("  Cached translations: %d\n", stats.CachedTranslations)

		fmt.Println("\nMarkets:")
		for _, m := range cfg.EnabledMarkets() {
			fmt.Printf("  %s: pivot %s, shows %v\n", m.Code, m.PivotLang, m.ShowLangs)
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Poll feeds and cluster new articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		in := ingest.NewIngester(db, newClusterer(db), cfg.Sources.Feeds)
		result := in.Run(cmd.Context())

		fmt.Println("\nIngestion complete:")
		fmt.Printf("  Feeds polled: %d\n", result.FeedsPolled)
		fmt.Printf("  Articles seen: %d\n", result.ArticlesSeen)
		fmt.Printf("  New articles: %d\n", result.ArticlesNew)
		fmt.Printf("  Feed errors: %d\n", result.Errors)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch full text for articles missing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fetcher := fetch.NewContentFetcher(db, 15*time.Second, 0)
		result := fetcher.FetchMissingContent(cmd.Context())

		fmt.Printf("\nFetched %d articles, %d failed\n", result.Fetched, result.Failed)
		return nil
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Summarize recently active clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider := newProvider()
		model := ""
		if cfg.Enrichment.UseProvider && provider != nil {
			model = cfg.Summarization.Model
		}
		enricher := enrich.NewEnricher(db, provider, enrich.Options{
			UseProvider:   cfg.Enrichment.UseProvider,
			RecentUpdates: cfg.Enrichment.RecentUpdates,
			MaxClusters:   cfg.Enrichment.MaxClusters,
			WindowHours:   cfg.Enrichment.WindowHours,
			Throttle:      time.Duration(cfg.Enrichment.ThrottleMS) * time.Millisecond,
			Model:         model,
		})

		result := enricher.EnrichRecent(cmd.Context(), pivotLangs())
		fmt.Printf("\n%d summaries created, %d skipped, %d errors\n",
			result.SummariesCreated, result.Skipped, result.Errors)
		return nil
	},
}

var pretranslateCmd = &cobra.Command{
	Use:   "pretranslate",
	Short: "Translate current summaries into all market languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		engine := translate.NewEngine(db, newProvider(), translate.Options{
			ChunkChars:  cfg.Translation.ChunkChars,
			MaxDocChars: cfg.Translation.MaxDocumentChars,
			MemoryCache: cfg.Translation.MemoryCacheSize,
			MaxTokens:   cfg.Summarization.MaxTokens,
		})
		scheduler := pretranslate.NewScheduler(db, engine, cfg.EnabledMarkets(), pretranslate.Options{
			WindowHours:  cfg.Pretranslate.WindowHours,
			MaxClusters:  cfg.Pretranslate.MaxClusters,
			Workers:      cfg.Pretranslate.Workers,
			JobTimeout:   time.Duration(cfg.Pretranslate.JobTimeoutSeconds) * time.Second,
			ProcessedCap: cfg.Pretranslate.ProcessedCap,
		})

		sum := scheduler.RunCycle(cmd.Context())
		fmt.Println("\nPretranslation cycle complete:")
		fmt.Printf("  Clusters scanned: %d\n", sum.ClustersScanned)
		fmt.Printf("  Jobs created: %d\n", sum.JobsCreated)
		fmt.Printf("  Translations inserted: %d\n", sum.TranslationsInserted)
		fmt.Printf("  Skipped (fresh): %d\n", sum.SkippedFresh)
		fmt.Printf("  Skipped (stale): %d\n", sum.SkippedStale)
		fmt.Printf("  Failed: %d\n", sum.Failed)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: ingest -> fetch -> enrich -> pretranslate",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := pipeline.New(cfg, db).Run(cmd.Context())

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		fmt.Println("\nPipeline complete! Run 'newsbabel serve' to browse clusters.")
		return nil
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "newsbabel.db")
	return database.Open(dbPath)
}

func newProvider() llm.Provider {
	summ := cfg.Summarization
	return llm.CreateProvider(summ.Provider, summ.Model, summ.OllamaURL, summ.OpenAIModel, summ.APIKeyEnv)
}

func newClusterer(db *database.DB) *cluster.Clusterer {
	extractor := update.NewExtractor(cfg.Stance.Mode, newProvider())
	return cluster.NewClusterer(db, extractor, cluster.Options{
		Enabled:       cfg.Clustering.Enabled,
		Threshold:     cfg.Clustering.SimilarityThreshold,
		WindowHours:   cfg.Clustering.WindowHours,
		MaxCandidates: cfg.Clustering.MaxCandidates,
	})
}

func pivotLangs() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, m := range cfg.EnabledMarkets() {
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
