// Package spam rejects contact messages by content and sender address before
// they are stored.
package spam

import (
	"strings"

	"github.com/nazarhussain/folio-courier/internal/form"
)

// Policy lists what the filter rejects. Matching is case-insensitive.
type Policy struct {
	// TriggerWords are substrings not allowed in the subject or message.
	TriggerWords []string
	// EmailPrefixes are local parts that mark a sender as suspicious, e.g.
	// "admin" rejects admin@anything.
	EmailPrefixes []string
	// EmailDomains are placeholder domains a sender address may not end in.
	EmailDomains []string
}

func DefaultPolicy() Policy {
	return Policy{
		TriggerWords: []string{
			"viagra", "cialis", "casino", "lottery", "free money", "click here",
			"buy now", "seo services", "crypto investment", "bitcoin investment",
			"make money fast", "work from home",
		},
		EmailPrefixes: []string{"admin", "root", "postmaster", "noreply", "no-reply"},
		EmailDomains:  []string{"example.com", "example.org", "example.net", "test.com", "test.test", "localhost", "mailinator.com"},
	}
}

// Verdict names the rule that matched. Rule is for logs only and must not be
// sent back to the client.
type Verdict struct {
	Blocked bool
	Rule    string
}

type Filter struct {
	words    []string
	prefixes []string
	domains  []string
}

func NewFilter(p Policy) *Filter {
	return &Filter{
		words:    normalize(p.TriggerWords, ""),
		prefixes: normalize(p.EmailPrefixes, "@"),
		domains:  p.EmailDomains,
	}
}

func normalize(in []string, suffix string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		s = strings.TrimSuffix(s, "@")
		out = append(out, s+suffix)
	}
	return out
}

// Check runs every rule; the first match decides.
func (f *Filter) Check(subject, message, email string) Verdict {
	text := strings.ToLower(subject + "\n" + message)
	for _, w := range f.words {
		if strings.Contains(text, w) {
			return Verdict{Blocked: true, Rule: "trigger_word:" + w}
		}
	}

	addr := strings.ToLower(strings.TrimSpace(email))
	for _, p := range f.prefixes {
		if strings.HasPrefix(addr, p) {
			return Verdict{Blocked: true, Rule: "email_prefix:" + strings.TrimSuffix(p, "@")}
		}
	}
	if form.HasDomainSuffix(addr, f.domains) {
		return Verdict{Blocked: true, Rule: "email_domain"}
	}
	return Verdict{}
}
