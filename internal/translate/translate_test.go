package translate

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newsbabel/newsbabel/internal/database"
)

// fakeProvider counts calls and answers with a canned or computed response.
type fakeProvider struct {
	calls    int
	response func(prompt string) (string, error)
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	f.calls++
	return f.response(prompt)
}

func (f *fakeProvider) IsConfigured() bool { return true }

// identityProvider echoes back the text portion of a single-field prompt.
func identityProvider() *fakeProvider {
	return &fakeProvider{response: func(prompt string) (string, error) {
		parts := strings.SplitN(prompt, "\n\n", 2)
		if len(parts) == 2 {
			return parts[1], nil
		}
		return prompt, nil
	}}
}

func combinedJSONProvider(title, summary, details string) *fakeProvider {
	return &fakeProvider{response: func(_ string) (string, error) {
		data, _ := json.Marshal(map[string]string{
			"title": title, "summary": summary, "details": details,
		})
		return string(data), nil
	}}
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

func TestSameLanguagePassthrough(t *testing.T) {
	e := NewEngine(openTestDB(t), nil, Options{})
	f := Fields{Title: "Hello", Summary: "World"}
	if got := e.TranslateFields(context.Background(), f, "en", "en"); got != f {
		t.Errorf("expected passthrough, got %+v", got)
	}
}

func TestCombinedTranslation(t *testing.T) {
	p := combinedJSONProvider("Hallo", "Zusammenfassung", "Einzelheiten")
	e := NewEngine(openTestDB(t), p, Options{})

	got := e.TranslateFields(context.Background(), Fields{
		Title: "Hello", Summary: "Summary", Details: "Details",
	}, "en", "de")

	if got.Title != "Hallo" || got.Summary != "Zusammenfassung" || got.Details != "Einzelheiten" {
		t.Errorf("unexpected translation: %+v", got)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 combined call, got %d", p.calls)
	}
}

func TestCacheMemoization(t *testing.T) {
	p := combinedJSONProvider("Hallo", "Welt", "Mehr")
	e := NewEngine(openTestDB(t), p, Options{})
	f := Fields{Title: "Hello", Summary: "World", Details: "More"}

	first := e.TranslateFields(context.Background(), f, "en", "de")
	second := e.TranslateFields(context.Background(), f, "en", "de")

	if first != second {
		t.Errorf("expected identical results, got %+v vs %+v", first, second)
	}
	if p.calls != 1 {
		t.Errorf("expected exactly 1 provider call across both invocations, got %d", p.calls)
	}
}

func TestFieldLevelCacheGranularity(t *testing.T) {
	p := combinedJSONProvider("Hallo", "Neu", "Neu")
	e := NewEngine(openTestDB(t), p, Options{})

	e.TranslateFields(context.Background(), Fields{Title: "Hello", Summary: "Old"}, "en", "de")

	// Same title, different summary: the title must come from cache and not
	// be re-sent to the provider.
	var sawTitle bool
	p.response = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Hello") {
			sawTitle = true
		}
		data, _ := json.Marshal(map[string]string{"summary": "Anders"})
		return string(data), nil
	}

	got := e.TranslateFields(context.Background(), Fields{Title: "Hello", Summary: "Different"}, "en", "de")
	if sawTitle {
		t.Error("expected cached title not to be re-sent to the provider")
	}
	if got.Title != "Hallo" {
		t.Errorf("expected cached title 'Hallo', got %q", got.Title)
	}
	if got.Summary != "Anders" {
		t.Errorf("expected fresh summary 'Anders', got %q", got.Summary)
	}
}

func TestPersistentTierSurvivesNewEngine(t *testing.T) {
	db := openTestDB(t)
	p := combinedJSONProvider("Hallo", "Welt", "")
	e1 := NewEngine(db, p, Options{})
	e1.TranslateFields(context.Background(), Fields{Title: "Hello", Summary: "World"}, "en", "de")

	// A fresh engine with no provider must serve the translation from the
	// persistent tier.
	e2 := NewEngine(db, nil, Options{})
	got := e2.TranslateFields(context.Background(), Fields{Title: "Hello", Summary: "World"}, "en", "de")
	if got.Title != "Hallo" || got.Summary != "Welt" {
		t.Errorf("expected persistent cache hit, got %+v", got)
	}
}

func TestProviderFailureReturnsOriginal(t *testing.T) {
	p := &fakeProvider{response: func(_ string) (string, error) {
		return "", errors.New("provider down")
	}}
	e := NewEngine(openTestDB(t), p, Options{})

	f := Fields{Title: "Hello", Summary: "World"}
	got := e.TranslateFields(context.Background(), f, "en", "de")
	if got.Title != "Hello" || got.Summary != "World" {
		t.Errorf("expected originals on failure, got %+v", got)
	}
}

func TestMalformedJSONFallsBackPerField(t *testing.T) {
	calls := 0
	p := &fakeProvider{response: func(prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "utter nonsense, no json here", nil
		}
		// Per-field fallback echoes the text portion.
		parts := strings.SplitN(prompt, "\n\n", 2)
		return "X:" + parts[1], nil
	}}
	e := NewEngine(openTestDB(t), p, Options{})

	got := e.TranslateFields(context.Background(), Fields{Title: "Hello", Summary: "World"}, "en", "de")
	if got.Title != "X:Hello" || got.Summary != "X:World" {
		t.Errorf("expected per-field fallback results, got %+v", got)
	}
}

func TestNoProviderCallWhenFullyCached(t *testing.T) {
	db := openTestDB(t)
	p := combinedJSONProvider("Hallo", "Welt", "Mehr")
	e := NewEngine(db, p, Options{})
	f := Fields{Title: "Hello", Summary: "World", Details: "More"}
	e.TranslateFields(context.Background(), f, "en", "de")

	p.response = func(_ string) (string, error) {
		t.Fatal("provider must not be called on a full cache hit")
		return "", nil
	}
	e.TranslateFields(context.Background(), f, "en", "de")
}
