// Package fetch backfills full article text. Feed snippets are often a
// sentence or two; the full text sharpens clustering similarity, so articles
// missing it are fetched over HTTP and run through readability extraction.
package fetch

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/newsbabel/newsbabel/internal/database"
)

const minExtractedChars = 100

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ContentFetcher fetches full article text via HTTP + readability extraction.
type ContentFetcher struct {
	db     *database.DB
	client *http.Client
	limit  int
}

// NewContentFetcher creates a content fetcher. limit caps how many articles
// one run attempts.
func NewContentFetcher(db *database.DB, timeout time.Duration, limit int) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if limit <= 0 {
		limit = 50
	}
	return &ContentFetcher{
		db:    db,
		limit: limit,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingContent fetches full text for articles that have none and no
// prior attempt. A domain that errors once is skipped for the rest of the
// run.
func (f *ContentFetcher) FetchMissingContent(ctx context.Context) *Result {
	articles, err := f.db.GetArticlesNeedingFetch(f.limit)
	if err != nil {
		log.Printf("Error getting articles needing fetch: %v", err)
		return &Result{}
	}
	if len(articles) == 0 {
		log.Println("No articles need content fetching")
		return &Result{}
	}

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for _, article := range articles {
		if ctx.Err() != nil {
			return result
		}

		domain := articleDomain(article.URL)
		if _, failed := failedDomains[domain]; failed {
			f.db.MarkArticleFetchAttempted(article.ID)
			result.Failed++
			continue
		}

		text, httpErr := f.fetchArticleText(ctx, article.URL)
		if httpErr != nil {
			f.db.MarkArticleFetchAttempted(article.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", article.URL, domain)
			continue
		}

		if text != "" {
			f.db.UpdateArticleFullText(article.ID, &text)
			result.Fetched++
			log.Printf("Fetched full text for: %s", article.Title)
		} else {
			f.db.MarkArticleFetchAttempted(article.ID)
			result.Failed++
			log.Printf("No extractable content from: %s", article.URL)
		}
	}

	log.Printf("Content fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return result
}

func (f *ContentFetcher) fetchArticleText(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "newsbabel/1.0 (news aggregator)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(articleURL)
	extracted, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(extracted.TextContent)
	if len(text) > minExtractedChars {
		return text, nil
	}
	return "", nil
}

func articleDomain(articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
