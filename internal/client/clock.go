package client

import "time"

type Timer interface {
	Stop() bool
}

// Clock abstracts time for the form. AfterFunc must run fn on its own
// goroutine, never inline.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }
