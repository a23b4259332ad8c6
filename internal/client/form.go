// Package client drives a contact form: bot heuristics, local validation,
// submission and the status shown to the visitor.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nazarhussain/folio-courier/internal/botcheck"
	"github.com/nazarhussain/folio-courier/internal/form"
)

// ErrBusy is returned while a previous submission is still in flight.
var ErrBusy = errors.New("client: submission already in progress")

type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	// OutcomeBlocked means the visitor was too fast and may retry.
	OutcomeBlocked Outcome = "blocked"
)

const (
	MsgSent         = "Thank you for your message. I will get back to you soon."
	MsgTooFast      = "That was quick! Please take a moment to review your message before sending."
	MsgFixFields    = "Please correct the highlighted fields."
	MsgTooMany      = "Too many requests. Please try again later."
	MsgInvalidData  = "Invalid data"
	MsgServerIssue  = "Server issue. Please try again later."
	MsgGenericError = "There was an error sending your message. Please try again."
)

// DefaultResetDelay is how long success and error states stay visible.
const DefaultResetDelay = 3 * time.Second

// Result describes what a Submit call did. Dispatched reports whether the
// request went to the network.
type Result struct {
	Dispatched  bool
	Outcome     Outcome
	Status      Status
	Message     string
	ID          int64
	FieldErrors form.FieldErrors
	// ClearFields tells the caller to empty its inputs.
	ClearFields bool
}

type Option func(*Form)

func WithClock(c Clock) Option { return func(f *Form) { f.clock = c } }

func WithResetDelay(d time.Duration) Option { return func(f *Form) { f.resetDelay = d } }

func WithRules(r form.Rules) Option {
	return func(f *Form) { f.validator = form.NewValidator(r) }
}

// WithStatusListener registers fn to receive every status transition. It is
// called without the form lock held.
func WithStatusListener(fn func(Status)) Option { return func(f *Form) { f.listener = fn } }

type Form struct {
	poster     Poster
	clock      Clock
	resetDelay time.Duration
	validator  *form.Validator
	listener   func(Status)

	mu        sync.Mutex
	status    Status
	mountedAt time.Time
	revert    Timer
	gen       uint64
}

// NewForm mounts a form. The mount time starts the fill-time check.
func NewForm(p Poster, opts ...Option) *Form {
	f := &Form{
		poster:     p,
		clock:      SystemClock{},
		resetDelay: DefaultResetDelay,
	}
	for _, o := range opts {
		o(f)
	}
	if f.validator == nil {
		f.validator = form.NewValidator(form.DefaultRules())
	}
	f.mountedAt = f.clock.Now()
	return f
}

func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Submit runs the bot heuristics, then validation, then sends s. Only the
// last step leaves the process; each earlier one returns without a network
// call.
func (f *Form) Submit(ctx context.Context, s form.Submission) (Result, error) {
	f.mu.Lock()
	if f.status == StatusSubmitting {
		f.mu.Unlock()
		return Result{Status: StatusSubmitting}, ErrBusy
	}

	now := f.clock.Now()
	switch botcheck.Evaluate(s, f.mountedAt, now) {
	case botcheck.TooFast:
		res := Result{Outcome: OutcomeBlocked, Status: f.status, Message: MsgTooFast}
		f.mu.Unlock()
		return res, nil
	case botcheck.Honeypot:
		// Indistinguishable from a real success.
		f.mountedAt = now
		f.setLocked(StatusSuccess)
		f.mu.Unlock()
		f.emit(StatusSuccess)
		return Result{Outcome: OutcomeSuccess, Status: StatusSuccess, Message: MsgSent, ClearFields: true}, nil
	}

	if errs := f.validator.Validate(s); errs != nil {
		res := Result{Outcome: OutcomeError, Status: f.status, Message: MsgFixFields, FieldErrors: errs}
		f.mu.Unlock()
		return res, nil
	}

	payload := Payload{
		Name:     s.Name,
		Email:    s.Email,
		Subject:  s.Subject,
		Message:  s.Message,
		FormTime: now.Sub(f.mountedAt).Milliseconds(),
	}
	f.setLocked(StatusSubmitting)
	f.mu.Unlock()
	f.emit(StatusSubmitting)

	resp, err := f.poster.Post(ctx, payload)

	res := Result{Dispatched: true}
	switch {
	case err != nil:
		res.Outcome, res.Message = OutcomeError, MsgGenericError
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.Outcome, res.Message = OutcomeSuccess, MsgSent
		res.ID = resp.ID
		res.ClearFields = true
	default:
		res.Outcome, res.Message = OutcomeError, errorMessage(resp)
	}

	f.mu.Lock()
	res.Status = StatusError
	if res.Outcome == OutcomeSuccess {
		res.Status = StatusSuccess
		f.mountedAt = f.clock.Now()
	}
	f.setLocked(res.Status)
	f.mu.Unlock()
	f.emit(res.Status)

	if err != nil {
		return res, fmt.Errorf("submit contact form: %w", err)
	}
	return res, nil
}

func errorMessage(resp Response) string {
	switch resp.StatusCode {
	case 429:
		return MsgTooMany
	case 400:
		if resp.Message != "" {
			return MsgInvalidData + ": " + resp.Message
		}
		return MsgInvalidData
	case 500:
		return MsgServerIssue
	default:
		return MsgGenericError
	}
}

// setLocked moves to s and replaces any pending revert. Terminal states
// schedule the next revert to idle.
func (f *Form) setLocked(s Status) {
	f.status = s
	f.gen++
	if f.revert != nil {
		f.revert.Stop()
		f.revert = nil
	}
	if s != StatusSuccess && s != StatusError {
		return
	}
	gen := f.gen
	f.revert = f.clock.AfterFunc(f.resetDelay, func() {
		f.mu.Lock()
		if f.gen != gen {
			f.mu.Unlock()
			return
		}
		f.status = StatusIdle
		f.gen++
		f.revert = nil
		f.mu.Unlock()
		f.emit(StatusIdle)
	})
}

func (f *Form) emit(s Status) {
	if f.listener != nil {
		f.listener(s)
	}
}
