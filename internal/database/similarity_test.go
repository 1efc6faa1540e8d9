package database

import (
	"testing"
	"time"
)

func TestFindSimilarRanksAndFilters(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	near := testArticle("near", "src", "Breaking: Alpha signs major deal with Beta", now.Add(-1*time.Hour))
	far := testArticle("far", "src2", "Local bakery wins pastry competition", now.Add(-2*time.Hour))
	stale := testArticle("stale", "src3", "Breaking: Alpha signs major deal with Beta", now.Add(-100*time.Hour))
	db.InsertArticle(near)
	db.InsertArticle(far)
	db.InsertArticle(stale)
	db.SetArticleCluster("near", "c-near")

	got, err := db.FindSimilar("Alpha signs major deal with Beta today", "self", now.Add(-72*time.Hour), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if got[0].ArticleID != "near" {
		t.Errorf("expected 'near' ranked first, got %q", got[0].ArticleID)
	}
	if got[0].ClusterID == nil || *got[0].ClusterID != "c-near" {
		t.Error("expected candidate to carry its cluster_id")
	}
	for _, c := range got {
		if c.ArticleID == "stale" {
			t.Error("expected article outside recency window to be excluded")
		}
	}
}

func TestFindSimilarExcludesSelf(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	db.InsertArticle(testArticle("a1", "src", "Storm hits the coast overnight", now))

	got, err := db.FindSimilar("Storm hits the coast overnight", "a1", now.Add(-72*time.Hour), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}

func TestDiceCoefficient(t *testing.T) {
	a := bigrams("night")
	if got := diceCoefficient(a, a); got != 1.0 {
		t.Errorf("identical texts should score 1.0, got %v", got)
	}
	b := bigrams("nacht")
	if got := diceCoefficient(a, b); got <= 0 || got >= 1 {
		t.Errorf("partial overlap should be in (0,1), got %v", got)
	}
	if got := diceCoefficient(bigrams("abc"), bigrams("xyz")); got != 0 {
		t.Errorf("disjoint texts should score 0, got %v", got)
	}
}
