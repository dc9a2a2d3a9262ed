package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-battle-service/internal/domain"
)

const questionsPerRequest = 10

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator turns model output into pool questions.
type Generator struct {
	completer Completer
	logger    zerolog.Logger
}

func NewGenerator(completer Completer, logger zerolog.Logger) *Generator {
	return &Generator{completer: completer, logger: logger}
}

// Generate asks for a batch of MCQs on topic and returns those that can be graded. Questions
// whose answer matches none of the options are dropped.
func (g *Generator) Generate(ctx context.Context, course, topic, level string) ([]domain.Question, error) {
	text, err := g.completer.Complete(ctx, buildPrompt(course, topic, level))
	if err != nil {
		return nil, err
	}
	items, err := ParseQuestions(text)
	if err != nil {
		g.logger.Warn().Err(err).Str("topic", topic).Int("raw_len", len(text)).Msg("unusable completion output")
		return nil, err
	}

	out := make([]domain.Question, 0, len(items))
	for i, item := range items {
		idx, ok := AnswerIndex(item)
		if !ok {
			g.logger.Warn().Int("index", i).Str("answer", item.Answer).Msg("answer not among options; skipping question")
			continue
		}
		explanation := item.Explanation
		if explanation == "" {
			explanation = fmt.Sprintf("The correct answer is %q. This is an important concept in %s for %s level %s.", item.Answer, topic, level, course)
		}
		out = append(out, domain.Question{
			ID:           uuid.NewString(),
			Prompt:       strings.TrimSpace(item.Question),
			Options:      item.Options,
			CorrectIndex: idx,
			Explanation:  explanation,
			Difficulty:   strings.ToLower(level),
		})
	}
	return out, nil
}

func buildPrompt(course, topic, level string) string {
	return fmt.Sprintf(`Generate %d multiple-choice questions (MCQs) on %q related to %q
for the %q level. Each question should have exactly 4 options, one correct answer,
and a brief explanation of why that answer is correct.

Respond ONLY with a valid JSON array, no preamble, no explanation, no markdown, no text before or after the JSON.
Each object must have "question", "options", "answer", and "explanation" fields.

Example:
[
  {
    "question": "What is ...?",
    "options": ["A", "B", "C", "D"],
    "answer": "A",
    "explanation": "..."
  }
]`, questionsPerRequest, topic, course, level)
}
