package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/newsbabel/newsbabel/internal/cluster"
	"github.com/newsbabel/newsbabel/internal/config"
	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/update"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Test Feed</title>
%s
</channel></rss>`

func rssItem(title, link, desc string) string {
	return fmt.Sprintf(`<item>
<title>%s</title>
<link>%s</link>
<description>%s</description>
<pubDate>Mon, 31 Aug 2026 10:00:00 GMT</pubDate>
</item>`, title, link, desc)
}

func serveRSS(t *testing.T, items ...string) *httptest.Server {
	t.Helper()
	body := fmt.Sprintf(rssTemplate, joinItems(items))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func joinItems(items []string) string {
	out := ""
	for _, it := range items {
		out += it + "\n"
	}
	return out
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testClusterer(db *database.DB) *cluster.Clusterer {
	extractor := update.NewExtractor(update.ModeRules, nil)
	return cluster.NewClusterer(db, extractor, cluster.Options{Enabled: true})
}

func TestRunStoresAndClustersArticles(t *testing.T) {
	srv := serveRSS(t,
		rssItem("Volcano erupts on island", "https://example.com/a1", "An eruption began overnight."),
		rssItem("Markets rally after rate cut", "https://example.com/a2", "Stocks climbed sharply."),
	)
	db := openTestDB(t)
	in := NewIngester(db, testClusterer(db), []config.Feed{{URL: srv.URL, Name: "testsrc", Language: "en"}})

	r := in.Run(context.Background())
	if r.FeedsPolled != 1 || r.ArticlesSeen != 2 || r.ArticlesNew != 2 || r.Errors != 0 {
		t.Errorf("unexpected result: %+v", r)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Articles != 2 {
		t.Errorf("expected 2 stored articles, got %d", stats.Articles)
	}
	// Unrelated stories start their own clusters, each with a timeline entry.
	if stats.Clusters != 2 {
		t.Errorf("expected 2 clusters, got %d", stats.Clusters)
	}
	if stats.TimelineEntries != 2 {
		t.Errorf("expected 2 timeline entries, got %d", stats.TimelineEntries)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	srv := serveRSS(t, rssItem("Single story", "https://example.com/a1", "Body text."))
	db := openTestDB(t)
	in := NewIngester(db, testClusterer(db), []config.Feed{{URL: srv.URL, Name: "testsrc"}})

	in.Run(context.Background())
	r := in.Run(context.Background())
	if r.ArticlesSeen != 1 || r.ArticlesNew != 0 {
		t.Errorf("expected repeat poll to dedup, got %+v", r)
	}
}

func TestRunSurvivesDeadFeed(t *testing.T) {
	srv := serveRSS(t, rssItem("Live story", "https://example.com/a1", "Body."))
	db := openTestDB(t)
	in := NewIngester(db, testClusterer(db), []config.Feed{
		{URL: "http://127.0.0.1:1/feed.xml", Name: "dead"},
		{URL: srv.URL, Name: "live"},
	})

	r := in.Run(context.Background())
	if r.Errors != 1 {
		t.Errorf("expected 1 feed error, got %d", r.Errors)
	}
	if r.ArticlesNew != 1 {
		t.Errorf("expected live feed to still ingest, got %+v", r)
	}
}

func TestRunWithoutClusterer(t *testing.T) {
	srv := serveRSS(t, rssItem("Story", "https://example.com/a1", "Body."))
	db := openTestDB(t)
	in := NewIngester(db, nil, []config.Feed{{URL: srv.URL, Name: "testsrc"}})

	r := in.Run(context.Background())
	if r.ArticlesNew != 1 {
		t.Errorf("expected 1 article, got %+v", r)
	}
	stats, _ := db.GetStats()
	if stats.Clusters != 0 {
		t.Errorf("expected no clusters without a clusterer, got %d", stats.Clusters)
	}
}

func TestBuildArticleNormalization(t *testing.T) {
	srv := serveRSS(t, rssItem("Tracked link", "https://example.com/story?utm_source=rss#top",
		"&lt;p&gt;Rich &amp; clean.&lt;/p&gt;"))
	db := openTestDB(t)
	ing := NewIngester(db, nil, []config.Feed{{URL: srv.URL, Name: "testsrc", Language: "de"}})
	ing.Run(context.Background())

	articles, err := db.GetArticlesNeedingFetch(10)
	if err != nil || len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d, %v", len(articles), err)
	}
	a := articles[0]
	if a.CanonicalURL != "https://example.com/story" {
		t.Errorf("expected canonical URL without query/fragment, got %q", a.CanonicalURL)
	}
	if a.Snippet != "Rich & clean." {
		t.Errorf("expected stripped snippet, got %q", a.Snippet)
	}
	if a.Language != "de" {
		t.Errorf("expected feed language carried over, got %q", a.Language)
	}
	if a.ID == "" || a.ContentHash == "" {
		t.Error("expected id and content hash to be set")
	}
}

func TestSourceNameFallsBackToHost(t *testing.T) {
	got := sourceName(config.Feed{URL: "https://feeds.example.co.uk/world/rss.xml"})
	if got != "example.co.uk" {
		t.Errorf("expected host-derived source name, got %q", got)
	}
	got = sourceName(config.Feed{URL: "https://x.test/feed", Name: "Custom"})
	if got != "Custom" {
		t.Errorf("expected explicit name, got %q", got)
	}
}
