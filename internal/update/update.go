// Package update derives a cluster timeline entry from a single article:
// a short claim, an optional stance label, and a one-line summary.
package update

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/newsbabel/newsbabel/internal/database"
	"github.com/newsbabel/newsbabel/internal/llm"
)

// Mode selects the stance strategy.
const (
	ModeOff   = "off"
	ModeRules = "rules"
	ModeLLM   = "llm"
)

const (
	maxClaimLen   = 200
	maxSummaryLen = 500
)

// Update is the timeline-entry payload extracted from one article.
type Update struct {
	Claim    string
	Stance   *string // nil when stance is disabled or undeterminable
	Summary  string
	Evidence string
	Lang     string
}

// Extractor turns articles into timeline entries. The provider is only
// consulted in ModeLLM and may be nil otherwise.
type Extractor struct {
	mode     string
	provider llm.Provider
}

// NewExtractor creates an extractor with the given stance mode.
func NewExtractor(mode string, provider llm.Provider) *Extractor {
	switch mode {
	case ModeOff, ModeRules, ModeLLM:
	default:
		mode = ModeOff
	}
	if mode == ModeLLM && provider == nil {
		log.Println("No LLM provider for stance classification, disabling stance")
		mode = ModeOff
	}
	return &Extractor{mode: mode, provider: provider}
}

// Extract builds the timeline payload for an article. It never fails:
// provider errors degrade to a nil stance.
func (e *Extractor) Extract(ctx context.Context, article database.Article) Update {
	u := Update{
		Claim:    trimClaim(article.Title),
		Summary:  clip(article.Snippet, maxSummaryLen),
		Evidence: article.URL,
		Lang:     article.Language,
	}

	switch e.mode {
	case ModeRules:
		s := classifyByRules(article.Language, article.Title+" "+article.Snippet)
		u.Stance = &s
	case ModeLLM:
		u.Stance = e.classifyByProvider(ctx, article)
	}

	return u
}

// trimClaim strips trailing punctuation and dash-separated suffixes from a
// title, capped at 200 chars.
func trimClaim(title string) string {
	claim := strings.TrimSpace(title)
	claim = strings.TrimRight(claim, ".!?:;,-–—| ")
	return clip(claim, maxClaimLen)
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// stanceRule maps a keyword pattern to a stance label. First match wins.
type stanceRule struct {
	pattern *regexp.Regexp
	stance  string
}

var stanceRules = map[string][]stanceRule{
	"en": {
		{regexp.MustCompile(`(?i)\b(denies|denied|reject(s|ed)?|refus(es|ed)|dismiss(es|ed)|debunk(s|ed)?)\b`), database.StanceContradicts},
		{regexp.MustCompile(`(?i)\b(confirm(s|ed)?|official(ly)?|sign(s|ed)|announc(es|ed)|approv(es|ed))\b`), database.StanceSupports},
		{regexp.MustCompile(`(?i)\b(rumou?r(s|ed)?|reports say|reportedly|allegedly|unconfirmed)\b`), database.StanceNeutral},
	},
	"de": {
		{regexp.MustCompile(`(?i)\b(dementiert|bestreitet|weist zurück|lehnt ab|widerspricht)\b`), database.StanceContradicts},
		{regexp.MustCompile(`(?i)\b(bestätigt|offiziell|unterzeichnet|verkündet|beschlossen)\b`), database.StanceSupports},
		{regexp.MustCompile(`(?i)\b(gerücht(e)?|berichten zufolge|angeblich|unbestätigt)\b`), database.StanceNeutral},
	},
	"fr": {
		{regexp.MustCompile(`(?i)\b(dément|nie|rejette|refuse|conteste)\b`), database.StanceContradicts},
		{regexp.MustCompile(`(?i)\b(confirme|officiel(lement)?|signe|annonce|approuve)\b`), database.StanceSupports},
		{regexp.MustCompile(`(?i)\b(rumeur(s)?|selon certaines sources|prétendument)\b`), database.StanceNeutral},
	},
}

// classifyByRules applies the language's rule set in order; an unmatched
// pass yields neutral. Unknown languages use the English rules.
func classifyByRules(lang, text string) string {
	key := strings.ToLower(lang)
	if i := strings.IndexByte(key, '-'); i > 0 {
		key = key[:i]
	}
	rules, ok := stanceRules[key]
	if !ok {
		rules = stanceRules["en"]
	}

	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.stance
		}
	}
	return database.StanceNeutral
}

const stancePrompt = `Classify the stance of this news headline toward the story it reports on.

Headline: %s
Summary: %s

Respond with exactly one word: supports, contradicts, or neutral.`

// classifyByProvider asks the provider for one of the three labels.
// Malformed output yields nil, never an error.
func (e *Extractor) classifyByProvider(ctx context.Context, article database.Article) *string {
	prompt := fmt.Sprintf(stancePrompt, article.Title, article.Snippet)
	response, err := e.provider.Generate(ctx, prompt, 8)
	if err != nil {
		log.Printf("Stance classification failed for %s: %v", article.ID, err)
		return nil
	}

	label := strings.ToLower(strings.Trim(strings.TrimSpace(response), `."'`))
	switch label {
	case database.StanceSupports, database.StanceContradicts, database.StanceNeutral:
		return &label
	}
	log.Printf("Unrecognized stance label %q for %s", label, article.ID)
	return nil
}
