package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// LongTermRepository persists distilled conversation notes with embeddings.
type LongTermRepository interface {
	Create(ctx context.Context, note *Note) error
	SearchSimilar(ctx context.Context, scope string, embedding []float32, limit int, threshold float64) ([]NoteMatch, error)
	DeleteByScope(ctx context.Context, scope string) (int64, error)
}

// PostgresLongTerm implements LongTermRepository using pgx + pgvector.
type PostgresLongTerm struct {
	pool *pgxpool.Pool
}

func NewPostgresLongTerm(pool *pgxpool.Pool) *PostgresLongTerm {
	return &PostgresLongTerm{pool: pool}
}

func (r *PostgresLongTerm) Create(ctx context.Context, note *Note) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}

	if len(note.Embedding) > 0 {
		vec := pgvector.NewVector(note.Embedding)
		_, err := r.pool.Exec(ctx,
			`INSERT INTO conversation_notes (id, scope, content, embedding)
			 VALUES ($1, $2, $3, $4)`,
			note.ID, note.Scope, note.Content, vec,
		)
		if err != nil {
			return fmt.Errorf("inserting note with embedding: %w", err)
		}
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_notes (id, scope, content)
		 VALUES ($1, $2, $3)`,
		note.ID, note.Scope, note.Content,
	)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}
	return nil
}

func (r *PostgresLongTerm) SearchSimilar(ctx context.Context, scope string, embedding []float32, limit int, threshold float64) ([]NoteMatch, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx,
		`SELECT id, scope, content, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM conversation_notes
		 WHERE scope = $2
		   AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, scope, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	var matches []NoteMatch
	for rows.Next() {
		var n Note
		var similarity float64
		if err := rows.Scan(&n.ID, &n.Scope, &n.Content, &n.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		matches = append(matches, NoteMatch{Note: n, Similarity: similarity})
	}
	return matches, rows.Err()
}

func (r *PostgresLongTerm) DeleteByScope(ctx context.Context, scope string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_notes WHERE scope = $1`, scope,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting notes for %s: %w", scope, err)
	}
	return tag.RowsAffected(), nil
}
