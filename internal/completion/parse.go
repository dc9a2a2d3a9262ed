package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrMalformedResponse = errors.New("malformed completion response")

// GeneratedQuestion is one MCQ as the model returns it.
type GeneratedQuestion struct {
	Question    string   `json:"question" validate:"required"`
	Options     []string `json:"options" validate:"required,min=2,dive,required"`
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation"`
}

var (
	trailingCommaObject = regexp.MustCompile(`,\s*}`)
	trailingCommaArray  = regexp.MustCompile(`,\s*]`)
	lineBreaks          = regexp.MustCompile(`\r\n|\n|\r`)
	// "options": [...], "B",  ->  "options": [...], "answer": "B",
	missingAnswerKey = regexp.MustCompile(`("options":\s*\[[^\]]+\],)\s*("[^"]+",)`)

	validate = validator.New()
)

// ParseQuestions extracts the JSON array from free-form model output. One repair pass is made
// for the usual defects before giving up with ErrMalformedResponse.
func ParseQuestions(text string) ([]GeneratedQuestion, error) {
	content := text
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		content = text[start : end+1]
	}

	var items []GeneratedQuestion
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		repaired := trailingCommaObject.ReplaceAllString(content, "}")
		repaired = trailingCommaArray.ReplaceAllString(repaired, "]")
		repaired = lineBreaks.ReplaceAllString(repaired, "")
		repaired = missingAnswerKey.ReplaceAllString(repaired, `$1 "answer": $2`)
		if err := json.Unmarshal([]byte(repaired), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrMalformedResponse, i, err)
		}
	}
	return items, nil
}

// AnswerIndex maps the answer text onto an option. Models sometimes answer with the letter
// ("B") or "B) text" instead of the option itself.
func AnswerIndex(q GeneratedQuestion) (int, bool) {
	answer := strings.TrimSpace(q.Answer)
	for i, opt := range q.Options {
		if strings.EqualFold(strings.TrimSpace(opt), answer) {
			return i, true
		}
	}
	if len(answer) >= 1 {
		letter := strings.ToUpper(answer[:1])
		rest := strings.TrimSpace(answer[1:])
		if letter >= "A" && letter <= "Z" && (rest == "" || strings.HasPrefix(rest, ")") || strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, ":")) {
			idx := int(letter[0] - 'A')
			if idx < len(q.Options) {
				return idx, true
			}
		}
	}
	return 0, false
}
