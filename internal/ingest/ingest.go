// Package ingest polls the configured feeds and turns their items into
// normalized articles. Each newly stored article is handed to the clusterer
// so it immediately joins or starts a story cluster.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/newsbabel/newsbabel/internal/cluster"
	"github.com/newsbabel/newsbabel/internal/config"
	"github.com/newsbabel/newsbabel/internal/database"
)

const (
	maxPerFeed      = 20
	maxSnippetChars = 600
)

// Result holds the results of an ingestion run.
type Result struct {
	FeedsPolled  int
	ArticlesSeen int
	ArticlesNew  int
	Errors       int
}

// Ingester polls feeds and stores articles.
type Ingester struct {
	db        *database.DB
	clusterer *cluster.Clusterer
	feeds     []config.Feed
	parser    *gofeed.Parser
}

// NewIngester creates an ingester over the configured feeds.
func NewIngester(db *database.DB, clusterer *cluster.Clusterer, feeds []config.Feed) *Ingester {
	return &Ingester{
		db:        db,
		clusterer: clusterer,
		feeds:     feeds,
		parser:    gofeed.NewParser(),
	}
}

// Run polls every feed once. Feed failures are logged and skipped; one dead
// feed never blocks the rest.
func (in *Ingester) Run(ctx context.Context) *Result {
	r := &Result{}

	for _, feed := range in.feeds {
		if err := ctx.Err(); err != nil {
			return r
		}
		seen, inserted, err := in.pollFeed(ctx, feed)
		if err != nil {
			log.Printf("Failed to poll feed %s: %v", feed.URL, err)
			r.Errors++
			continue
		}
		r.FeedsPolled++
		r.ArticlesSeen += seen
		r.ArticlesNew += inserted
		log.Printf("Polled %s: %d items, %d new", sourceName(feed), seen, inserted)
	}

	log.Printf("Ingestion complete: %d feeds, %d articles seen, %d new, %d errors",
		r.FeedsPolled, r.ArticlesSeen, r.ArticlesNew, r.Errors)
	return r
}

func (in *Ingester) pollFeed(ctx context.Context, feed config.Feed) (seen, inserted int, err error) {
	parsed, err := in.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return 0, 0, err
	}

	source := sourceName(feed)
	for _, item := range parsed.Items {
		if seen >= maxPerFeed {
			break
		}
		article := buildArticle(item, source, feed.Language)
		if article == nil {
			continue
		}
		seen++

		ok, err := in.db.InsertArticle(*article)
		if err != nil {
			log.Printf("Failed to store article %s: %v", article.URL, err)
			continue
		}
		if !ok {
			// Already known, dedup by (source, content hash).
			continue
		}
		inserted++

		if in.clusterer != nil {
			in.clusterer.AssignCluster(ctx, *article, source)
		}
	}
	return seen, inserted, nil
}

// buildArticle normalizes a feed item. Items without a link or title are
// dropped.
func buildArticle(item *gofeed.Item, source, language string) *database.Article {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return nil
	}

	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	snippet := item.Description
	if snippet == "" {
		snippet = item.Content
	}
	snippet = clip(stripHTML(snippet), maxSnippetChars)

	if language == "" {
		language = "en"
	}
	canonical := canonicalURL(link)

	return &database.Article{
		ID:           uuid.NewString(),
		SourceID:     source,
		URL:          link,
		CanonicalURL: canonical,
		Title:        title,
		Snippet:      snippet,
		Language:     language,
		PublishedAt:  published,
		FetchedAt:    time.Now().UTC(),
		ContentHash:  contentHash(canonical, title),
	}
}

// contentHash identifies an article's content for dedup within one source.
func contentHash(canonical, title string) string {
	h := sha256.Sum256([]byte(canonical + "\x00" + title))
	return hex.EncodeToString(h[:])
}

// canonicalURL strips query string and fragment, the usual carriers of
// tracking parameters.
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func sourceName(feed config.Feed) string {
	if feed.Name != "" {
		return feed.Name
	}
	u, err := url.Parse(feed.URL)
	if err != nil {
		return feed.URL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}

func clip(s string, max int) string {
	if runes := []rune(s); len(runes) > max {
		return string(runes[:max])
	}
	return s
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}
