package cluster

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/update"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestClusterer(db *database.DB) *Clusterer {
	extractor := update.NewExtractor(update.ModeRules, nil)
	return NewClusterer(db, extractor, Options{Enabled: true})
}

func insertArticle(t *testing.T, db *database.DB, id, title string, published time.Time) database.Article {
	t.Helper()
	a := database.Article{
		ID:          id,
		SourceID:    "src",
		URL:         "https://example.com/" + id,
		Title:       title,
		Snippet:     title,
		Language:    "en",
		PublishedAt: published,
		FetchedAt:   published,
		ContentHash: "hash-" + id,
	}
	if _, err := db.InsertArticle(a); err != nil {
		t.Fatalf("insert article %s: %v", id, err)
	}
	return a
}

func TestAssignClusterSingletonFallback(t *testing.T) {
	db := openTestDB(t)
	c := newTestClusterer(db)

	a := insertArticle(t, db, "a1", "Completely unique story about nothing else", time.Now())
	got := c.AssignCluster(context.Background(), a, "src")
	if got != "a1" {
		t.Errorf("expected singleton cluster id 'a1', got %q", got)
	}

	cl, _ := db.GetCluster("a1")
	if cl == nil || cl.Size != 1 {
		t.Fatalf("expected singleton cluster of size 1, got %+v", cl)
	}
	if cl.SeedArticleID != "a1" {
		t.Errorf("expected seed article 'a1', got %q", cl.SeedArticleID)
	}
}

func TestAssignClusterReusesSimilarCluster(t *testing.T) {
	db := openTestDB(t)
	c := newTestClusterer(db)
	now := time.Now()

	a := insertArticle(t, db, "a1", "Breaking: Alpha signs deal", now.Add(-time.Hour))
	if got := c.AssignCluster(context.Background(), a, "src"); got != "a1" {
		t.Fatalf("expected new cluster 'a1', got %q", got)
	}

	b := insertArticle(t, db, "b1", "Breaking: Alpha signs the deal", now)
	if got := c.AssignCluster(context.Background(), b, "src"); got != "a1" {
		t.Errorf("expected reuse of cluster 'a1', got %q", got)
	}

	cl, _ := db.GetCluster("a1")
	if cl.Size != 2 {
		t.Errorf("expected cluster size 2, got %d", cl.Size)
	}

	updates, _ := db.GetClusterUpdates("a1")
	if len(updates) != 2 {
		t.Errorf("expected 2 timeline entries, got %d", len(updates))
	}
}

func TestAssignClusterIdempotent(t *testing.T) {
	db := openTestDB(t)
	c := newTestClusterer(db)

	a := insertArticle(t, db, "a1", "Some story headline", time.Now())
	first := c.AssignCluster(context.Background(), a, "src")
	if first != "a1" {
		t.Fatalf("expected 'a1', got %q", first)
	}

	// Re-read: the article now carries its assignment.
	assigned, _ := db.GetArticleByID("a1")
	second := c.AssignCluster(context.Background(), *assigned, "src")
	if second != first {
		t.Errorf("expected same cluster id on re-assignment, got %q", second)
	}

	// No second upsert happened: size is still 1.
	cl, _ := db.GetCluster("a1")
	if cl.Size != 1 {
		t.Errorf("expected size 1 after idempotent re-assignment, got %d", cl.Size)
	}
}

func TestAssignClusterDisabled(t *testing.T) {
	db := openTestDB(t)
	extractor := update.NewExtractor(update.ModeOff, nil)
	c := NewClusterer(db, extractor, Options{Enabled: false})

	a := insertArticle(t, db, "a1", "Story", time.Now())
	if got := c.AssignCluster(context.Background(), a, "src"); got != "" {
		t.Errorf("expected no assignment when disabled, got %q", got)
	}

	cl, _ := db.GetCluster("a1")
	if cl != nil {
		t.Error("expected no cluster side effects when disabled")
	}
}

func TestAssignClusterBelowThreshold(t *testing.T) {
	db := openTestDB(t)
	c := newTestClusterer(db)
	now := time.Now()

	a := insertArticle(t, db, "a1", "Parliament votes on new budget bill", now.Add(-time.Hour))
	c.AssignCluster(context.Background(), a, "src")

	b := insertArticle(t, db, "b1", "Sports team wins championship final", now)
	if got := c.AssignCluster(context.Background(), b, "src"); got != "b1" {
		t.Errorf("expected dissimilar article to seed its own cluster, got %q", got)
	}
}

func TestAssignClusterDeterministic(t *testing.T) {
	// Same article and candidate set in two separate databases must yield
	// the same assignment.
	for run := 0; run < 2; run++ {
		db := openTestDB(t)
		c := newTestClusterer(db)
		now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

		a := insertArticle(t, db, "a1", "Breaking: Alpha signs deal", now.Add(-time.Hour))
		c.AssignCluster(context.Background(), a, "src")
		b := insertArticle(t, db, "b1", "Breaking: Alpha signs deal today", now)
		if got := c.AssignCluster(context.Background(), b, "src"); got != "a1" {
			t.Errorf("run %d: expected deterministic assignment to 'a1', got %q", run, got)
		}
	}
}

func TestTimelineEntryHasClaimAndStance(t *testing.T) {
	db := openTestDB(t)
	c := newTestClusterer(db)

	a := insertArticle(t, db, "a1", "Officials confirm treaty signed.", time.Now())
	c.AssignCluster(context.Background(), a, "src")

	updates, _ := db.GetClusterUpdates("a1")
	if len(updates) != 1 {
		t.Fatalf("expected 1 timeline entry, got %d", len(updates))
	}
	u := updates[0]
	if u.Claim != "Officials confirm treaty signed" {
		t.Errorf("unexpected claim: %q", u.Claim)
	}
	if u.Stance == nil || *u.Stance != database.StanceSupports {
		t.Errorf("expected supports stance, got %v", u.Stance)
	}
}
