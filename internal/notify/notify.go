// Package notify forwards stored contact messages to the site owner.
// Delivery is best effort: a Dispatcher reports failure, it never returns an
// error for the caller to act on.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nazarhussain/folio-courier/internal/logging"
	"github.com/nazarhussain/folio-courier/internal/store"
)

type Dispatcher interface {
	// SendNotification returns true when the message was handed to the mail
	// server.
	SendNotification(ctx context.Context, m store.Message) bool
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, m store.Message) bool

func (f DispatcherFunc) SendNotification(ctx context.Context, m store.Message) bool {
	return f(ctx, m)
}

// Disabled is used when no mail server is configured.
type Disabled struct{}

func (Disabled) SendNotification(ctx context.Context, m store.Message) bool {
	logging.LoggerFromContext(ctx).Warn("notification skipped: SMTP is not configured", "message_id", m.ID)
	return false
}

// WithTimeout bounds next. A dispatch still running when the timeout fires is
// reported as failed; it keeps running in the background with a cancelled
// context.
func WithTimeout(next Dispatcher, timeout time.Duration) Dispatcher {
	if timeout <= 0 {
		return next
	}
	return &timeoutDispatcher{next: next, timeout: timeout}
}

type timeoutDispatcher struct {
	next    Dispatcher
	timeout time.Duration
}

func (d *timeoutDispatcher) SendNotification(ctx context.Context, m store.Message) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		done <- safeSend(ctx, d.next, m)
	}()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		logging.LoggerFromContext(ctx).Warn("notification timed out",
			"message_id", m.ID,
			"timeout", d.timeout.String(),
		)
		return false
	}
}

// safeSend turns a panicking dispatcher into a failed dispatch.
func safeSend(ctx context.Context, d Dispatcher, m store.Message) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.LoggerFromContext(ctx).Error("notification panicked",
				"message_id", m.ID,
				"err", fmt.Sprint(rec),
			)
			ok = false
		}
	}()
	return d.SendNotification(ctx, m)
}

// Safe wraps d so that a panic inside it is reported as a failed dispatch.
func Safe(d Dispatcher) Dispatcher {
	return DispatcherFunc(func(ctx context.Context, m store.Message) bool {
		return safeSend(ctx, d, m)
	})
}
