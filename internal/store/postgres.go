package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `CREATE TABLE IF NOT EXISTS contact_messages (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	subject    TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPool opens a pgx pool and checks the connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Postgres stores messages in the contact_messages table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)

// Migrate creates the table if it does not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create contact_messages: %w", err)
	}
	return nil
}

func (s *Postgres) CreateMessage(ctx context.Context, m NewMessage) (*Message, error) {
	msg := &Message{
		Name:    m.Name,
		Email:   m.Email,
		Subject: m.Subject,
		Message: m.Message,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contact_messages (name, email, subject, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		m.Name, m.Email, m.Subject, m.Message,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert contact message: %w", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

func (s *Postgres) ListMessages(ctx context.Context, opts ListOptions) ([]*Message, error) {
	opts = opts.Normalized()
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, subject, message, created_at
		 FROM contact_messages
		 ORDER BY id DESC
		 LIMIT $1 OFFSET $2`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
