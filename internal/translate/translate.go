// Package translate turns pivot-language text into target-language text
// through a two-tier cache: an in-process LRU in front of the persistent
// translation_cache table. Long documents are chunked on paragraph
// boundaries; short ones go through one combined structured call.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/llm"
	"github.com/newsbabel/newsbabel/internal/lru"
)

const (
	DefaultChunkChars  = 2800
	DefaultMaxDocChars = 50000
	DefaultMemoryCache = 2048
)

// Fields holds the three translatable parts of a cluster summary.
type Fields struct {
	Title   string
	Summary string
	Details string
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	ChunkChars  int
	MaxDocChars int
	MemoryCache int
	MaxTokens   int
}

// Engine translates summary fields with field-level cache granularity:
// the same title with a different summary still hits the cache on the title.
type Engine struct {
	db       *database.DB
	provider llm.Provider
	memory   *lru.Cache
	opts     Options
}

// NewEngine creates a translation engine. The provider may be nil, in which
// case every translation degrades to the original text.
func NewEngine(db *database.DB, provider llm.Provider, opts Options) *Engine {
	if opts.ChunkChars <= 0 {
		opts.ChunkChars = DefaultChunkChars
	}
	if opts.MaxDocChars <= 0 {
		opts.MaxDocChars = DefaultMaxDocChars
	}
	if opts.MemoryCache <= 0 {
		opts.MemoryCache = DefaultMemoryCache
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	return &Engine{
		db:       db,
		provider: provider,
		memory:   lru.New(opts.MemoryCache),
		opts:     opts,
	}
}

// TranslateFields translates title, summary and details from src to dst.
// It never fails: provider errors degrade to the best available value,
// ultimately the original text. A details document over the hard cap comes
// back empty, signaling "skip" to callers.
func (e *Engine) TranslateFields(ctx context.Context, f Fields, src, dst string) Fields {
	if src == dst {
		return f
	}

	if out, ok := e.lookupAll(f, src, dst); ok {
		return out
	}

	if len(f.Details) > e.opts.ChunkChars {
		return Fields{
			Title:   e.translateText(ctx, f.Title, src, dst),
			Summary: e.translateText(ctx, f.Summary, src, dst),
			Details: e.translateDocument(ctx, f.Details, src, dst),
		}
	}

	return e.translateCombined(ctx, f, src, dst)
}

// lookupAll returns the fully cached translation if every non-empty field
// hits a cache tier.
func (e *Engine) lookupAll(f Fields, src, dst string) (Fields, bool) {
	var out Fields
	for _, p := range []struct {
		src  string
		dest *string
	}{
		{f.Title, &out.Title},
		{f.Summary, &out.Summary},
		{f.Details, &out.Details},
	} {
		if p.src == "" {
			continue
		}
		cached, ok := e.lookup(p.src, src, dst)
		if !ok {
			return Fields{}, false
		}
		*p.dest = cached
	}
	return out, true
}

func (e *Engine) lookup(text, src, dst string) (string, bool) {
	key := cacheKey(src, dst, text)
	if v, ok := e.memory.Get(key); ok {
		return v, true
	}
	v, err := e.db.GetTranslation(key)
	if err != nil {
		log.Printf("Translation cache read failed: %v", err)
		return "", false
	}
	if v == nil {
		return "", false
	}
	e.memory.Put(key, *v)
	return *v, true
}

func (e *Engine) store(text, src, dst, translated string) {
	key := cacheKey(src, dst, text)
	e.memory.Put(key, translated)
	if err := e.db.PutTranslation(key, src, dst, translated); err != nil {
		log.Printf("Translation cache write failed: %v", err)
	}
}

const fieldPrompt = `Translate the following text from %s to %s.
Keep the meaning and journalistic tone. Reply with only the translation, no comments.

%s`

// translateText is the cached single-field path.
func (e *Engine) translateText(ctx context.Context, text, src, dst string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if cached, ok := e.lookup(text, src, dst); ok {
		return cached
	}
	if e.provider == nil {
		return text
	}

	response, err := e.provider.Generate(ctx, fmt.Sprintf(fieldPrompt, src, dst, text), e.opts.MaxTokens)
	if err != nil {
		log.Printf("Translation %s->%s failed: %v", src, dst, err)
		return text
	}
	translated := strings.TrimSpace(response)
	if translated == "" {
		return text
	}

	e.store(text, src, dst, translated)
	return translated
}

const combinedPrompt = `Translate the fields of this news summary from %s to %s.
Keep the meaning and journalistic tone.

%s

Respond with ONLY this JSON:
{"title": "...", "summary": "...", "details": "..."}`

// translateCombined translates the uncached fields in one structured call,
// falling back to independent per-field calls when parsing fails. Fields
// already in a cache tier are reused, not re-sent.
func (e *Engine) translateCombined(ctx context.Context, f Fields, src, dst string) Fields {
	out := f
	payload := make(map[string]string, 3)

	for _, p := range []struct {
		name string
		text string
		dest *string
	}{
		{"title", f.Title, &out.Title},
		{"summary", f.Summary, &out.Summary},
		{"details", f.Details, &out.Details},
	} {
		if p.text == "" {
			continue
		}
		if cached, ok := e.lookup(p.text, src, dst); ok {
			*p.dest = cached
			continue
		}
		payload[p.name] = p.text
	}
	if len(payload) == 0 || e.provider == nil {
		return out
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return out
	}

	response, genErr := e.provider.Generate(ctx, fmt.Sprintf(combinedPrompt, src, dst, data), e.opts.MaxTokens)
	if genErr == nil {
		if parsed := llm.ParseJSONResponse(response); parsed != nil {
			applyParsed := func(name, orig string, dest *string) {
				if _, needed := payload[name]; !needed {
					return
				}
				if v := getField(parsed, name); v != "" {
					e.store(orig, src, dst, v)
					*dest = v
				}
			}
			applyParsed("title", f.Title, &out.Title)
			applyParsed("summary", f.Summary, &out.Summary)
			applyParsed("details", f.Details, &out.Details)
			return out
		}
	} else {
		log.Printf("Combined translation %s->%s failed: %v", src, dst, genErr)
	}

	// Parsing failed entirely; translate remaining fields one by one.
	if _, ok := payload["title"]; ok {
		out.Title = e.translateText(ctx, f.Title, src, dst)
	}
	if _, ok := payload["summary"]; ok {
		out.Summary = e.translateText(ctx, f.Summary, src, dst)
	}
	if _, ok := payload["details"]; ok {
		out.Details = e.translateText(ctx, f.Details, src, dst)
	}
	return out
}

func getField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func cacheKey(src, dst, text string) string {
	h := sha256.Sum256([]byte(src + "\x00" + dst + "\x00" + text))
	return hex.EncodeToString(h[:])
}
