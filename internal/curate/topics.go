package curate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTopic is returned for a slug not in the registry.
var ErrUnknownTopic = errors.New("unknown topic")

// Topic is a news category with its search term and analysis boilerplate.
type Topic struct {
	Slug        string
	Name        string
	Term        string
	Boilerplate []string
}

var registry = []Topic{
	{
		Slug: "ai",
		Name: "AI applications",
		Term: "AI应用",
		Boilerplate: []string{
			"This AI application story reflects recent progress of artificial intelligence in a specific vertical.",
			"The headline points to technical innovation, a product launch or market adoption.",
			"AI application trends show rising market demand and investor attention.",
			"Competition and technical direction in this field are still taking shape and merit follow-up.",
		},
	},
	{
		Slug: "robotics",
		Name: "Robotics",
		Term: "机器人",
		Boilerplate: []string{
			"This robotics story concerns automation, intelligent control or human-robot collaboration.",
			"It reflects recent progress in industrial, service or consumer robots.",
			"The robotics industry is moving toward smarter, more flexible and safer machines.",
			"The market keeps growing as use cases multiply and iteration speeds up.",
		},
	},
	{
		Slug: "quantum",
		Name: "Quantum technology",
		Term: "量子科技",
		Boilerplate: []string{
			"This quantum technology story concerns research advances in quantum computing, communication or materials.",
			"It represents a major step for next-generation information technology and may change computing paradigms.",
			"Quantum technology has far-reaching effects on cryptography, optimization and simulation.",
			"Commercialization is accelerating and practical applications are getting closer.",
		},
	},
}

// Topics returns the full registry in display order.
func Topics() []Topic {
	out := make([]Topic, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a topic by slug, display name or search term.
func Lookup(key string) (Topic, bool) {
	key = strings.TrimSpace(key)
	for _, t := range registry {
		if strings.EqualFold(key, t.Slug) || strings.EqualFold(key, t.Name) || key == t.Term {
			return t, true
		}
	}
	return Topic{}, false
}

// Resolve maps configured slugs onto registry topics.
func Resolve(slugs []string) ([]Topic, error) {
	topics := make([]Topic, 0, len(slugs))
	for _, s := range slugs {
		t, ok := Lookup(s)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, s)
		}
		topics = append(topics, t)
	}
	return topics, nil
}
