package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-duel-service/internal/domain"
)

// PoolLoader loads question pools from the questions table.
type PoolLoader struct {
	pool *pgxpool.Pool
}

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPool(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, prompt, answer, unit_code, semester, tags, kind
		FROM questions
		WHERE subject = $1 AND grade = $2
		ORDER BY id`, category.Subject, category.Grade)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", category, err)
	}
	defer rows.Close()

	var pool []domain.Question
	for rows.Next() {
		var (
			q    domain.Question
			kind string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Answer, &q.Unit, &q.Semester, &q.Tags, &kind); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Kind = domain.AnswerKind(kind)
		pool = append(pool, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load pool %s: %w", category, err)
	}
	if len(pool) == 0 {
		return nil, domain.ErrEmptyPool
	}
	return pool, nil
}
