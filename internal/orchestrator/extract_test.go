package orchestrator

import (
	"errors"
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		want  any
	}{
		{name: "bare", input: `{"overall_score": 8}`, key: "overall_score", want: float64(8)},
		{name: "prose around", input: "Sure! Here is the analysis:\n{\"feedback\": \"nice\"}\nHope it helps.", key: "feedback", want: "nice"},
		{name: "markdown fence", input: "```json\n{\"overall_score\": 6.5}\n```", key: "overall_score", want: 6.5},
		{name: "nested", input: `x {"a": {"b": 1}, "feedback": "ok"} y {"feedback": "second"}`, key: "feedback", want: "ok"},
		{name: "braces in strings", input: `{"feedback": "use {curly} and \"quoted }\" text"}`, key: "feedback", want: `use {curly} and "quoted }" text`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if err != nil {
				t.Fatalf("ExtractJSONObject: %v", err)
			}
			if got[tt.key] != tt.want {
				t.Fatalf("%s = %v, want %v", tt.key, got[tt.key], tt.want)
			}
		})
	}
}

func TestExtractJSONObjectErrors(t *testing.T) {
	if _, err := ExtractJSONObject("I cannot analyze this photo."); !errors.Is(err, ErrNoJSONObject) {
		t.Fatalf("expected ErrNoJSONObject, got %v", err)
	}
	if _, err := ExtractJSONObject(`{"overall_score": 8`); !errors.Is(err, ErrNoJSONObject) {
		t.Fatalf("expected ErrNoJSONObject for unbalanced input, got %v", err)
	}
	if _, err := ExtractJSONObject(`{overall_score: 8}`); !errors.Is(err, ErrBadJSON) {
		t.Fatalf("expected ErrBadJSON, got %v", err)
	}
}
