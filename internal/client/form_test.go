package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazarhussain/folio-courier/internal/form"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

type fakePoster struct {
	mu       sync.Mutex
	payloads []Payload
	resp     Response
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (p *fakePoster) Post(ctx context.Context, payload Payload) (Response, error) {
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	p.mu.Unlock()
	if p.started != nil {
		p.started <- struct{}{}
		<-p.release
	}
	return p.resp, p.err
}

func (p *fakePoster) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type statusLog struct {
	mu   sync.Mutex
	seen []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, s)
}

func (l *statusLog) all() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.seen...)
}

func scenarioA() form.Submission {
	return form.Submission{
		Name:    "Jo",
		Email:   "jo@realmail.com",
		Subject: "Hello there",
		Message: "This is a long enough test message for validation.",
	}
}

func newTestForm(p Poster) (*Form, *fakeClock, *statusLog) {
	clock := newFakeClock()
	log := &statusLog{}
	f := NewForm(p, WithClock(clock), WithStatusListener(log.record))
	return f, clock, log
}

func TestSubmitSuccess(t *testing.T) {
	p := &fakePoster{resp: Response{StatusCode: 201, ID: 42}}
	f, clock, log := newTestForm(p)

	clock.Advance(5 * time.Second)
	res, err := f.Submit(context.Background(), scenarioA())
	require.NoError(t, err)

	assert.True(t, res.Dispatched)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, int64(42), res.ID)
	assert.True(t, res.ClearFields)
	assert.Equal(t, MsgSent, res.Message)

	require.Equal(t, 1, p.calls())
	assert.Equal(t, "Jo", p.payloads[0].Name)
	assert.Equal(t, int64(5000), p.payloads[0].FormTime)
	assert.Equal(t, []Status{StatusSubmitting, StatusSuccess}, log.all())
}

func TestHoneypotFakesSuccess(t *testing.T) {
	tests := []struct {
		name string
		sub  form.Submission
	}{
		{"valid fields", func() form.Submission { s := scenarioA(); s.Website = "http://bots.io"; return s }()},
		{"invalid fields", form.Submission{Name: "J", Email: "x", Website: "filled"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{resp: Response{StatusCode: 201}}
			f, clock, log := newTestForm(p)
			clock.Advance(5 * time.Second)

			res, err := f.Submit(context.Background(), tt.sub)
			require.NoError(t, err)

			assert.False(t, res.Dispatched)
			assert.Equal(t, OutcomeSuccess, res.Outcome)
			assert.Equal(t, StatusSuccess, f.Status())
			assert.True(t, res.ClearFields)
			assert.Empty(t, res.FieldErrors)
			assert.Zero(t, p.calls())
			assert.Equal(t, []Status{StatusSuccess}, log.all())

			clock.Advance(DefaultResetDelay)
			assert.Equal(t, StatusIdle, f.Status())
		})
	}
}

func TestWhitespaceHoneypotIsNotSent(t *testing.T) {
	p := &fakePoster{resp: Response{StatusCode: 201}}
	f, clock, _ := newTestForm(p)
	clock.Advance(5 * time.Second)

	s := scenarioA()
	s.Website = " \t"
	res, err := f.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, res.Dispatched)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Zero(t, p.calls())
}

func TestTimingGate(t *testing.T) {
	tests := []struct {
		name       string
		elapsed    time.Duration
		dispatched bool
	}{
		{"500ms", 500 * time.Millisecond, false},
		{"just under", 2999 * time.Millisecond, false},
		{"exactly 3s", 3 * time.Second, true},
		{"5s", 5 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{resp: Response{StatusCode: 201}}
			f, clock, log := newTestForm(p)
			clock.Advance(tt.elapsed)

			res, err := f.Submit(context.Background(), scenarioA())
			require.NoError(t, err)
			assert.Equal(t, tt.dispatched, res.Dispatched)
			if tt.dispatched {
				assert.Equal(t, 1, p.calls())
				return
			}
			assert.Equal(t, OutcomeBlocked, res.Outcome)
			assert.Equal(t, MsgTooFast, res.Message)
			assert.Equal(t, StatusIdle, res.Status)
			assert.Zero(t, p.calls())
			assert.Empty(t, log.all())
		})
	}
}

func TestTooFastWinsOverHoneypot(t *testing.T) {
	p := &fakePoster{}
	f, clock, _ := newTestForm(p)
	clock.Advance(time.Second)

	s := scenarioA()
	s.Website = "filled"
	res, err := f.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, res.Outcome)
	assert.Equal(t, StatusIdle, f.Status())
}

func TestValidationStaysLocal(t *testing.T) {
	p := &fakePoster{resp: Response{StatusCode: 201}}
	f, clock, log := newTestForm(p)
	clock.Advance(5 * time.Second)

	s := scenarioA()
	s.Subject = "Check this out https://spam.example"
	res, err := f.Submit(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, res.Dispatched)
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, StatusIdle, res.Status)
	assert.Equal(t, "Subject cannot contain links", res.FieldErrors["subject"])
	assert.Zero(t, p.calls())
	assert.Empty(t, log.all())
}

func TestCustomRules(t *testing.T) {
	p := &fakePoster{resp: Response{StatusCode: 201}}
	rules := form.DefaultRules()
	rules.BlockedDomains = append(rules.BlockedDomains, "realmail.com")
	clock := newFakeClock()
	f := NewForm(p, WithClock(clock), WithRules(rules))
	clock.Advance(5 * time.Second)

	res, err := f.Submit(context.Background(), scenarioA())
	require.NoError(t, err)
	assert.Contains(t, res.FieldErrors, "email")
	assert.Zero(t, p.calls())
}

func TestServerStatusMessages(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"rate limited", Response{StatusCode: 429, Message: "too many requests"}, MsgTooMany},
		{"invalid with detail", Response{StatusCode: 400, Message: "content not allowed"}, "Invalid data: content not allowed"},
		{"invalid bare", Response{StatusCode: 400}, MsgInvalidData},
		{"server issue", Response{StatusCode: 500}, MsgServerIssue},
		{"other", Response{StatusCode: 502}, MsgGenericError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{resp: tt.resp}
			f, clock, log := newTestForm(p)
			clock.Advance(5 * time.Second)

			res, err := f.Submit(context.Background(), scenarioA())
			require.NoError(t, err)
			assert.True(t, res.Dispatched)
			assert.Equal(t, OutcomeError, res.Outcome)
			assert.Equal(t, StatusError, res.Status)
			assert.Equal(t, tt.want, res.Message)
			assert.False(t, res.ClearFields)

			clock.Advance(DefaultResetDelay)
			assert.Equal(t, []Status{StatusSubmitting, StatusError, StatusIdle}, log.all())
		})
	}
}

func TestTransportFailure(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")
	p := &fakePoster{err: netErr}
	f, clock, _ := newTestForm(p)
	clock.Advance(5 * time.Second)

	res, err := f.Submit(context.Background(), scenarioA())
	require.ErrorIs(t, err, netErr)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, MsgGenericError, res.Message)
}

func TestSubmitWhileBusy(t *testing.T) {
	p := &fakePoster{
		resp:    Response{StatusCode: 201},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f, clock, _ := newTestForm(p)
	clock.Advance(5 * time.Second)

	done := make(chan Result)
	go func() {
		res, _ := f.Submit(context.Background(), scenarioA())
		done <- res
	}()
	<-p.started

	assert.Equal(t, StatusSubmitting, f.Status())
	_, err := f.Submit(context.Background(), scenarioA())
	assert.ErrorIs(t, err, ErrBusy)

	close(p.release)
	res := <-done
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, p.calls())
}

func TestSuccessRestartsFillTimer(t *testing.T) {
	p := &fakePoster{resp: Response{StatusCode: 201}}
	f, clock, _ := newTestForm(p)
	clock.Advance(5 * time.Second)

	_, err := f.Submit(context.Background(), scenarioA())
	require.NoError(t, err)

	clock.Advance(time.Second)
	res, err := f.Submit(context.Background(), scenarioA())
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, res.Outcome)

	clock.Advance(2 * time.Second)
	res, err = f.Submit(context.Background(), scenarioA())
	require.NoError(t, err)
	assert.True(t, res.Dispatched)
}

func TestNewTransitionCancelsPendingRevert(t *testing.T) {
	p := &fakePoster{resp: Response{StatusCode: 500}}
	f, clock, _ := newTestForm(p)
	clock.Advance(5 * time.Second)

	_, err := f.Submit(context.Background(), scenarioA())
	require.NoError(t, err)
	require.Equal(t, StatusError, f.Status())

	clock.Advance(time.Second)
	p.resp = Response{StatusCode: 201}
	_, err = f.Submit(context.Background(), scenarioA())
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, f.Status())

	// The revert scheduled by the error state would fire here.
	clock.Advance(2 * time.Second)
	assert.Equal(t, StatusSuccess, f.Status())

	clock.Advance(time.Second)
	assert.Equal(t, StatusIdle, f.Status())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "submitting", StatusSubmitting.String())
	assert.Equal(t, "unknown", Status(9).String())
}
