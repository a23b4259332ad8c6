package botcheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nazarhussain/folio-courier/internal/form"
)

func TestEvaluate(t *testing.T) {
	mounted := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		website string
		elapsed time.Duration
		want    Verdict
	}{
		{"human", "", 5 * time.Second, Clean},
		{"exactly the minimum", "", MinFillTime, Clean},
		{"just under the minimum", "", MinFillTime - time.Millisecond, TooFast},
		{"instant", "", 500 * time.Millisecond, TooFast},
		{"honeypot filled", "http://bot.example", 10 * time.Second, Honeypot},
		{"honeypot whitespace only", "   ", 10 * time.Second, Honeypot},
		{"honeypot single space", " ", 10 * time.Second, Honeypot},
		{"both tripped", "filled", time.Second, TooFast},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := form.Submission{Website: tc.website}
			assert.Equal(t, tc.want, Evaluate(s, mounted, mounted.Add(tc.elapsed)))
		})
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "clean", Clean.String())
	assert.Equal(t, "too_fast", TooFast.String())
	assert.Equal(t, "honeypot", Honeypot.String())
}
