// Package form holds the contact form payload and the field rules shared by
// the browser-side client and the server.
package form

import (
	"regexp"
	"sort"
	"strings"
)

// Submission is what the visitor typed into the contact form.
type Submission struct {
	Name    string `json:"name" validate:"required,min=2,max=50,personname,noterms"`
	Email   string `json:"email" validate:"required,min=5,max=100,email,notdomain"`
	Subject string `json:"subject" validate:"required,min=5,max=100,nourl"`
	Message string `json:"message" validate:"required,min=20,max=1000,maxurls"`

	// Website is the honeypot. It is hidden from humans and must stay empty.
	Website string `json:"-" validate:"-"`
}

// Rules are the policy inputs of validation.
type Rules struct {
	// RestrictedTerms may not appear anywhere in a name, case-insensitively.
	RestrictedTerms []string
	// BlockedDomains are placeholder domains an email address may not end in.
	BlockedDomains []string
	// MaxMessageURLs is the number of links a message may carry.
	MaxMessageURLs int
}

func DefaultRules() Rules {
	return Rules{
		RestrictedTerms: []string{"admin", "administrator", "support", "moderator", "root", "webmaster"},
		BlockedDomains:  []string{"example.com", "example.org", "example.net", "test.com", "test.test", "localhost", "mailinator.com"},
		MaxMessageURLs:  2,
	}
}

var (
	urlRegex        = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+)`)
	personNameRegex = regexp.MustCompile(`^[\p{L} '-]+$`)
)

// CountURLs returns the number of link-like substrings in s.
func CountURLs(s string) int {
	return len(urlRegex.FindAllStringIndex(s, -1))
}

// ContainsURL reports whether s carries an http:// or https:// link.
func ContainsURL(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "http://") || strings.Contains(l, "https://")
}

// HasDomainSuffix reports whether the domain part of addr equals one of
// domains or is a subdomain of it.
func HasDomainSuffix(addr string, domains []string) bool {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return false
	}
	host := strings.ToLower(strings.TrimSpace(addr[at+1:]))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FieldErrors maps a JSON field name to the first rule it broke.
type FieldErrors map[string]string

var fieldOrder = map[string]int{"name": 0, "email": 1, "subject": 2, "message": 3}

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := fieldOrder[keys[i]]
		oj, jok := fieldOrder[keys[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}
