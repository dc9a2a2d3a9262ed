package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseQuestionsExtractsArray(t *testing.T) {
	text := "Sure! Here you go:\n```json\n" + `[
  {"question": "What is 2 + 2?", "options": ["3", "4", "5", "6"], "answer": "4", "explanation": "Basic addition."}
]` + "\n```\nGood luck!"

	items, err := ParseQuestions(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 1 || items[0].Answer != "4" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestParseQuestionsRepairsTrailingCommas(t *testing.T) {
	text := `[
  {"question": "Capital of France?", "options": ["Paris", "Rome", "Berlin", "Madrid",], "answer": "Paris",},
]`
	items, err := ParseQuestions(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 1 || len(items[0].Options) != 4 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestParseQuestionsRepairsMissingAnswerKey(t *testing.T) {
	text := `[{"question": "Largest planet?", "options": ["Mars", "Jupiter", "Venus", "Earth"], "Jupiter", "explanation": "It is the largest."}]`
	items, err := ParseQuestions(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if items[0].Answer != "Jupiter" {
		t.Fatalf("expected repaired answer, got %+v", items[0])
	}
}

func TestParseQuestionsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no json":        "I cannot help with that.",
		"not an array":   `{"question": "x"}`,
		"missing answer": `[{"question": "Q?", "options": ["a", "b"]}]`,
		"no options":     `[{"question": "Q?", "options": [], "answer": "a"}]`,
	}
	for name, text := range cases {
		if _, err := ParseQuestions(text); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%s: expected malformed response, got %v", name, err)
		}
	}
}

func TestAnswerIndex(t *testing.T) {
	q := GeneratedQuestion{Options: []string{"Mars", "Jupiter", "Venus", "Earth"}}

	for answer, want := range map[string]int{"jupiter": 1, " Earth ": 3, "C": 2, "B) Jupiter": 1} {
		q.Answer = answer
		got, ok := AnswerIndex(q)
		if !ok || got != want {
			t.Fatalf("answer %q: expected %d, got %d (ok=%v)", answer, want, got, ok)
		}
	}
	q.Answer = "Pluto"
	if _, ok := AnswerIndex(q); ok {
		t.Fatalf("expected no match for Pluto")
	}
}

func TestClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(Options{URL: srv.URL, APIKey: "key-1"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := client.Complete(ctx, "say hello")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected hello, got %q", text)
	}
	if got.Model != DefaultModel || got.MaxTokens != DefaultMaxTokens {
		t.Fatalf("unexpected request defaults: %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "say hello" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewClient(Options{URL: srv.URL}).Complete(context.Background(), "x"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected missing key, got %v", err)
	}
	if _, err := NewClient(Options{URL: srv.URL, APIKey: "k"}).Complete(context.Background(), "x"); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestGeneratorBuildsGradableQuestions(t *testing.T) {
	completer := stubCompleter{text: `[
  {"question": "What is 2 + 2?", "options": ["3", "4", "5", "6"], "answer": "4", "explanation": "Addition."},
  {"question": "What is 3 * 3?", "options": ["6", "9", "12", "15"], "answer": "9"},
  {"question": "Unanswerable?", "options": ["a", "b", "c", "d"], "answer": "zebra"}
]`}
	gen := NewGenerator(completer, zerolog.Nop())

	qs, err := gen.Generate(context.Background(), "Math", "Arithmetic", "Medium")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 gradable questions, got %d", len(qs))
	}
	if qs[0].CorrectIndex != 1 || qs[1].CorrectIndex != 1 {
		t.Fatalf("unexpected correct indexes: %d %d", qs[0].CorrectIndex, qs[1].CorrectIndex)
	}
	want := `The correct answer is "9". This is an important concept in Arithmetic for Medium level Math.`
	if qs[1].Explanation != want {
		t.Fatalf("unexpected fallback explanation: %q", qs[1].Explanation)
	}
	if qs[0].Difficulty != "medium" || qs[0].ID == "" {
		t.Fatalf("expected id and lowercased difficulty: %+v", qs[0])
	}
}

func TestGeneratorPropagatesMalformed(t *testing.T) {
	gen := NewGenerator(stubCompleter{text: "sorry"}, zerolog.Nop())
	if _, err := gen.Generate(context.Background(), "Math", "Algebra", "easy"); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Complete(context.Context, string) (string, error) {
	return s.text, s.err
}
