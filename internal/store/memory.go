package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps messages in a slice. Ids start at 1.
type Memory struct {
	mu       sync.Mutex
	messages []*Message
	lastID   int64
	closed   bool
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

var _ Store = (*Memory)(nil)

func (s *Memory) CreateMessage(ctx context.Context, m NewMessage) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.lastID++
	msg := &Message{
		ID:        s.lastID,
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Message:   m.Message,
		CreatedAt: s.now().UTC(),
	}
	s.messages = append(s.messages, msg)
	cp := *msg
	return &cp, nil
}

func (s *Memory) ListMessages(ctx context.Context, opts ListOptions) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := []*Message{}
	for i := len(s.messages) - 1 - opts.Offset; i >= 0 && len(out) < opts.Limit; i-- {
		cp := *s.messages[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Memory) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
