package curate

import "strings"

// Policy is a content denylist. A candidate whose title or summary
// contains any term is dropped outright.
type Policy struct {
	terms []string
}

// NewPolicy creates a policy; matching is case-insensitive.
func NewPolicy(denylist []string) *Policy {
	p := &Policy{}
	for _, t := range denylist {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			p.terms = append(p.terms, t)
		}
	}
	return p
}

// Blocks returns the first denylisted term found, if any.
func (p *Policy) Blocks(title, summary string) (string, bool) {
	title = strings.ToLower(title)
	summary = strings.ToLower(summary)
	for _, t := range p.terms {
		if strings.Contains(title, t) || strings.Contains(summary, t) {
			return t, true
		}
	}
	return "", false
}
