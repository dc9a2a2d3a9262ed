package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-battle-service/internal/domain"
)

// QuestionLoader loads the question pool from the quiz_questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) QueryByDifficulty(ctx context.Context, difficulty string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, difficulty, prompt, options, correct_index, explanation
		FROM quiz_questions
		WHERE lower(difficulty) = lower($1)
		ORDER BY created_at, id`, difficulty)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Difficulty, &q.Prompt, &raw, &q.CorrectIndex, &q.Explanation); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
		}
		// rows that no longer grade correctly are skipped rather than served
		if q.CorrectIndex >= len(q.Options) {
			continue
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// QuestionWriter upserts generated questions into quiz_questions.
type QuestionWriter struct {
	pool *pgxpool.Pool
}

func NewQuestionWriter(pool *pgxpool.Pool) *QuestionWriter {
	return &QuestionWriter{pool: pool}
}

// Save writes all questions in one transaction and returns how many rows were written.
func (w *QuestionWriter) Save(ctx context.Context, topic string, questions []domain.Question) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	written := 0
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return 0, fmt.Errorf("marshal options for %s: %w", q.ID, err)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO quiz_questions (id, difficulty, prompt, options, correct_index, explanation, topic)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				difficulty = EXCLUDED.difficulty,
				prompt = EXCLUDED.prompt,
				options = EXCLUDED.options,
				correct_index = EXCLUDED.correct_index,
				explanation = EXCLUDED.explanation,
				topic = EXCLUDED.topic`,
			q.ID, q.Difficulty, q.Prompt, options, q.CorrectIndex, q.Explanation, topic)
		if err != nil {
			return 0, fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
		written += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}
