// Package botcheck flags contact form submissions that look automated.
package botcheck

import (
	"time"

	"github.com/nazarhussain/folio-courier/internal/form"
)

// MinFillTime is how long a human needs at least to fill the form.
const MinFillTime = 3 * time.Second

type Verdict int

const (
	Clean Verdict = iota
	// TooFast is reported to the visitor, who may simply try again.
	TooFast
	// Honeypot is never reported; the caller fakes a success.
	Honeypot
)

func (v Verdict) String() string {
	switch v {
	case Clean:
		return "clean"
	case TooFast:
		return "too_fast"
	case Honeypot:
		return "honeypot"
	default:
		return "unknown"
	}
}

// Evaluate runs the timing check and then the honeypot check. When both trip
// the timing verdict wins.
func Evaluate(s form.Submission, mountedAt, now time.Time) Verdict {
	if now.Sub(mountedAt) < MinFillTime {
		return TooFast
	}
	if s.Website != "" {
		return Honeypot
	}
	return Clean
}
