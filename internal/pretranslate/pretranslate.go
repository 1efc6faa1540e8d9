// Package pretranslate schedules translations of current cluster summaries
// into every market language ahead of demand. A cycle scans recently active
// clusters, derives one job per missing or outdated target language, and
// executes the jobs on a bounded worker pool. Jobs are idempotent: a
// composite key over (cluster, target, pivot hash) is tracked in a bounded
// LRU set so completed work is never rescheduled. Failed keys are not
// marked, so a transient failure is retried on the next cycle.
package pretranslate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newsbabel/newsbabel/internal/config"
	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/lru"
	"github.com/newsbabel/newsbabel/internal/retry"
	"github.com/newsbabel/newsbabel/internal/translate"
)

const (
	DefaultWindowHours  = 72
	DefaultMaxClusters  = 100
	DefaultWorkers      = 4
	DefaultJobTimeout   = 8 * time.Second
	DefaultProcessedCap = 10000

	fallbackPivotLang = "en"
)

// Job is one unit of pretranslation work: bring the target language of a
// cluster up to date with the pivot content identified by PivotHash.
type Job struct {
	ClusterID  string
	TargetLang string
	PivotHash  string
}

func (j Job) key() string {
	return j.ClusterID + "|" + j.TargetLang + "|" + j.PivotHash
}

// outcome classifies how a job ended.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeFresh
	outcomeStale
	outcomeFailed
)

// Summary aggregates one cycle's results.
type Summary struct {
	ClustersScanned      int
	JobsCreated          int
	TranslationsInserted int
	SkippedFresh         int
	SkippedStale         int
	Failed               int
}

// Options configures a Scheduler. Zero values fall back to defaults.
type Options struct {
	WindowHours  int
	MaxClusters  int
	Workers      int
	JobTimeout   time.Duration
	ProcessedCap int
}

// store is the slice of the database the scheduler reads and writes.
type store interface {
	GetRecentClusters(since time.Time, limit int) ([]database.Cluster, error)
	GetCurrentSummaries(clusterID string) ([]database.ClusterAI, error)
	ReplaceCurrentSummary(s database.ClusterAI) (int64, error)
}

// Scheduler runs pretranslation cycles. All state is held on the instance;
// two schedulers over the same database do not share idempotency tracking
// but converge through the freshness checks.
type Scheduler struct {
	db        store
	engine    *translate.Engine
	markets   []config.Market
	processed *lru.Cache
	opts      Options
}

// NewScheduler creates a scheduler over the given markets.
func NewScheduler(db store, engine *translate.Engine, markets []config.Market, opts Options) *Scheduler {
	if opts.WindowHours <= 0 {
		opts.WindowHours = DefaultWindowHours
	}
	if opts.MaxClusters <= 0 {
		opts.MaxClusters = DefaultMaxClusters
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.ProcessedCap <= 0 {
		opts.ProcessedCap = DefaultProcessedCap
	}
	return &Scheduler{
		db:        db,
		engine:    engine,
		markets:   markets,
		processed: lru.New(opts.ProcessedCap),
		opts:      opts,
	}
}

// RunCycle scans recent clusters, collects translation jobs, and executes
// them. It returns a summary of everything the cycle did.
func (s *Scheduler) RunCycle(ctx context.Context) *Summary {
	sum := &Summary{}

	targets, pivotLang := s.targetLanguages()
	if len(targets) == 0 {
		log.Println("Pretranslation: no enabled markets, nothing to do")
		return sum
	}

	since := time.Now().UTC().Add(-time.Duration(s.opts.WindowHours) * time.Hour)
	clusters, err := s.db.GetRecentClusters(since, s.opts.MaxClusters)
	if err != nil {
		log.Printf("Pretranslation: cluster scan failed: %v", err)
		return sum
	}
	sum.ClustersScanned = len(clusters)

	jobs := s.collectJobs(ctx, clusters, targets, pivotLang)
	sum.JobsCreated = len(jobs)
	if len(jobs) == 0 {
		return sum
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			jctx, cancel := context.WithTimeout(gctx, s.opts.JobTimeout)
			out := s.executeJob(jctx, job)
			cancel()

			// Failed work stays unmarked so the next cycle retries it.
			if out != outcomeFailed {
				s.processed.Add(job.key())
			}

			mu.Lock()
			switch out {
			case outcomeDone:
				sum.TranslationsInserted++
			case outcomeFresh:
				sum.SkippedFresh++
			case outcomeStale:
				sum.SkippedStale++
			case outcomeFailed:
				sum.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	log.Printf("Pretranslation cycle: %d clusters scanned, %d jobs, %d inserted, %d fresh, %d stale, %d failed",
		sum.ClustersScanned, sum.JobsCreated, sum.TranslationsInserted,
		sum.SkippedFresh, sum.SkippedStale, sum.Failed)
	return sum
}

// targetLanguages unions every enabled market's display languages and picks
// the default pivot language.
func (s *Scheduler) targetLanguages() ([]string, string) {
	seen := make(map[string]bool)
	var targets []string
	pivot := ""
	for _, m := range s.markets {
		if !m.Enabled {
			continue
		}
		if pivot == "" {
			pivot = m.PivotLang
		}
		for _, lang := range m.ShowLangs {
			if !seen[lang] {
				seen[lang] = true
				targets = append(targets, lang)
			}
		}
	}
	if pivot == "" {
		pivot = fallbackPivotLang
	}
	return targets, pivot
}

// collectJobs examines each cluster's current summaries and emits one job
// per target language that is missing or behind the pivot content. Clusters
// are examined concurrently on a bounded pool.
func (s *Scheduler) collectJobs(ctx context.Context, clusters []database.Cluster, targets []string, pivotLang string) []Job {
	var mu sync.Mutex
	var jobs []Job
	inflight := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, cluster := range clusters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, job := range s.clusterJobs(cluster.ID, targets, pivotLang) {
				key := job.key()
				if s.processed.Contains(key) {
					continue
				}
				mu.Lock()
				if !inflight[key] {
					inflight[key] = true
					jobs = append(jobs, job)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return jobs
}

func (s *Scheduler) clusterJobs(clusterID string, targets []string, pivotLang string) []Job {
	rows, err := s.db.GetCurrentSummaries(clusterID)
	if err != nil {
		log.Printf("Pretranslation: loading summaries for %s failed: %v", clusterID, err)
		return nil
	}
	pivot := pickPivot(rows, pivotLang)
	if pivot == nil {
		// No summary yet, nothing to translate from.
		return nil
	}
	hash := contentHash(pivot.AITitle, pivot.AISummary, pivot.AIDetails)

	byLang := make(map[string]*database.ClusterAI, len(rows))
	for i := range rows {
		byLang[rows[i].Lang] = &rows[i]
	}

	var jobs []Job
	for _, lang := range targets {
		if lang == pivot.Lang {
			continue
		}
		if isFresh(byLang[lang], hash, pivot.CreatedAt) {
			continue
		}
		jobs = append(jobs, Job{ClusterID: clusterID, TargetLang: lang, PivotHash: hash})
	}
	return jobs
}

// pickPivot prefers the current row in the configured pivot language and
// falls back to any current row.
func pickPivot(rows []database.ClusterAI, pivotLang string) *database.ClusterAI {
	for i := range rows {
		if rows[i].Lang == pivotLang {
			return &rows[i]
		}
	}
	if len(rows) > 0 {
		return &rows[0]
	}
	return nil
}

// isFresh reports whether a target row already reflects the pivot content.
// Rows written before the pivot_hash column existed are matched through the
// provenance tag, and rows predating even that are compared by creation
// time.
func isFresh(row *database.ClusterAI, hash string, pivotCreated time.Time) bool {
	if row == nil {
		return false
	}
	if row.PivotHash != nil {
		return *row.PivotHash == hash
	}
	if strings.Contains(row.Model, "pivot:") {
		return strings.Contains(row.Model, "pivot:"+hash)
	}
	return !row.CreatedAt.Before(pivotCreated)
}

var errUntranslated = errors.New("translation produced no output")

func (s *Scheduler) executeJob(ctx context.Context, job Job) outcome {
	// Fresh read; the pivot may have changed since the scan.
	rows, err := s.db.GetCurrentSummaries(job.ClusterID)
	if err != nil {
		log.Printf("Pretranslation: job %s/%s load failed: %v", job.ClusterID, job.TargetLang, err)
		return outcomeFailed
	}

	pivot := locatePivot(rows, job.PivotHash)
	if pivot == nil {
		// Superseded; a later cycle will pick up the new pivot.
		return outcomeStale
	}
	if contentHash(pivot.AITitle, pivot.AISummary, pivot.AIDetails) != job.PivotHash {
		return outcomeStale
	}

	// Another worker or process may have finished this exact translation.
	if target := rowForLang(rows, job.TargetLang); target != nil {
		if target.PivotHash != nil && *target.PivotHash == job.PivotHash {
			return outcomeFresh
		}
		if strings.Contains(target.Model, "pivot:"+job.PivotHash) {
			return outcomeFresh
		}
	}

	src := translate.Fields{Title: pivot.AITitle, Summary: pivot.AISummary, Details: pivot.AIDetails}
	var out translate.Fields
	err = retry.Do(ctx, retry.DefaultConfig, func() error {
		out = s.engine.TranslateFields(ctx, src, pivot.Lang, job.TargetLang)
		if !translated(src, out) {
			return errUntranslated
		}
		return nil
	})
	if err != nil {
		log.Printf("Pretranslation: job %s/%s failed: %v", job.ClusterID, job.TargetLang, err)
		return outcomeFailed
	}

	hash := job.PivotHash
	id, err := s.db.ReplaceCurrentSummary(database.ClusterAI{
		ClusterID: job.ClusterID,
		Lang:      job.TargetLang,
		AITitle:   out.Title,
		AISummary: out.Summary,
		AIDetails: out.Details,
		Model:     fmt.Sprintf("%s pivot:%s", pivot.Model, hash),
		PivotHash: &hash,
		IsCurrent: true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Pretranslation: job %s/%s store failed: %v", job.ClusterID, job.TargetLang, err)
		return outcomeFailed
	}
	if id == 0 {
		// A concurrent writer won the unique-index race; their row stands.
		return outcomeFresh
	}
	return outcomeDone
}

// locatePivot finds the row the job's hash was computed from. Content is
// rehashed rather than trusted from the scan, so a row edited in between
// simply stops matching.
func locatePivot(rows []database.ClusterAI, hash string) *database.ClusterAI {
	for i := range rows {
		if contentHash(rows[i].AITitle, rows[i].AISummary, rows[i].AIDetails) == hash {
			return &rows[i]
		}
	}
	// Legacy rows tag the hash in their provenance field.
	for i := range rows {
		if rows[i].PivotHash == nil && strings.Contains(rows[i].Model, "pivot:"+hash) {
			return &rows[i]
		}
	}
	return nil
}

func rowForLang(rows []database.ClusterAI, lang string) *database.ClusterAI {
	for i := range rows {
		if rows[i].Lang == lang {
			return &rows[i]
		}
	}
	return nil
}

// translated reports whether the engine actually produced target-language
// text: at least one non-empty output field differing from its input.
func translated(src, out translate.Fields) bool {
	if out.Title != "" && out.Title != src.Title {
		return true
	}
	if out.Summary != "" && out.Summary != src.Summary {
		return true
	}
	if out.Details != "" && out.Details != src.Details {
		return true
	}
	return false
}

// contentHash is a short stable signature of a summary's translatable
// content.
func contentHash(title, summary, details string) string {
	h := sha256.Sum256([]byte(title + "\x00" + summary + "\x00" + details))
	return hex.EncodeToString(h[:6])
}
