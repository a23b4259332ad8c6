// Package store persists accepted contact messages.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a store that has been shut down.
var ErrClosed = errors.New("store closed")

// Message is an accepted contact submission. It is never changed once stored.
type Message struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage carries the validated fields; the store assigns ID and CreatedAt.
type NewMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ListOptions pages through messages, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalized applies the default and maximum page size.
func (o ListOptions) Normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

type Store interface {
	CreateMessage(ctx context.Context, m NewMessage) (*Message, error)
	ListMessages(ctx context.Context, opts ListOptions) ([]*Message, error)
}
