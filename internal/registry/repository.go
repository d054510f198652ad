package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines channel and ignore-list persistence.
type Repository interface {
	ListChannels(ctx context.Context) ([]Channel, error)
	UpsertChannel(ctx context.Context, ch Channel) error
	SetChannelActive(ctx context.Context, jid string, active bool) error
	DeleteChannel(ctx context.Context, jid string) error
	ListIgnored(ctx context.Context) ([]IgnoredUser, error)
	AddIgnored(ctx context.Context, u IgnoredUser) error
	RemoveIgnored(ctx context.Context, jid string) error
}

// ErrNotFound is returned when a channel or ignore entry does not exist.
var ErrNotFound = errors.New("not found")

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT jid, nick, active, created_at, updated_at
		 FROM channels ORDER BY jid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.JID, &ch.Nick, &ch.Active, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *PostgresRepository) UpsertChannel(ctx context.Context, ch Channel) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO channels (jid, nick, active)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (jid) DO UPDATE SET nick = $2, active = $3, updated_at = now()`,
		ch.JID, ch.Nick, ch.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting channel %s: %w", ch.JID, err)
	}
	return nil
}

func (r *PostgresRepository) SetChannelActive(ctx context.Context, jid string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE channels SET active = $2, updated_at = now() WHERE jid = $1`,
		jid, active,
	)
	if err != nil {
		return fmt.Errorf("updating channel %s: %w", jid, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteChannel(ctx context.Context, jid string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE jid = $1`, jid)
	if err != nil {
		return fmt.Errorf("deleting channel %s: %w", jid, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListIgnored(ctx context.Context) ([]IgnoredUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT jid, reason, created_at FROM ignored_users ORDER BY jid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ignored users: %w", err)
	}
	defer rows.Close()

	var users []IgnoredUser
	for rows.Next() {
		var u IgnoredUser
		if err := rows.Scan(&u.JID, &u.Reason, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning ignored user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) AddIgnored(ctx context.Context, u IgnoredUser) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ignored_users (jid, reason)
		 VALUES ($1, $2)
		 ON CONFLICT (jid) DO UPDATE SET reason = $2`,
		u.JID, u.Reason,
	)
	if err != nil {
		return fmt.Errorf("adding ignored user %s: %w", u.JID, err)
	}
	return nil
}

func (r *PostgresRepository) RemoveIgnored(ctx context.Context, jid string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ignored_users WHERE jid = $1`, jid)
	if err != nil {
		return fmt.Errorf("removing ignored user %s: %w", jid, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
