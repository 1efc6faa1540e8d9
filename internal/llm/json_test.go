package llm

import "testing"

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseSurroundedByProse(t *testing.T) {
	text := `Sure! Here is the translation you asked for:
{"title": "Hallo", "summary": "Welt {geschweift}"}
Let me know if you need anything else.`
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["title"] != "Hallo" {
		t.Errorf("expected title='Hallo', got %v", result["title"])
	}
}

func TestParseJSONResponseBracesInStrings(t *testing.T) {
	result := ParseJSONResponse(`noise {"a": "has } brace", "b": "and { too"} noise`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["a"] != "has } brace" {
		t.Errorf("unexpected a: %v", result["a"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if result := ParseJSONResponse("not json at all"); result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	if result := ParseJSONResponse(""); result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestExtractJSONObjectUnterminated(t *testing.T) {
	if got := extractJSONObject(`{"key": "value"`); got != "" {
		t.Errorf("expected empty string for unterminated object, got %q", got)
	}
}
