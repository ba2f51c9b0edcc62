// Package curate picks one news story per topic from search results,
// attaches a templated analysis and applies the content policy.
package curate

import (
	"context"
	"strings"
	"time"

	"github.com/TobiSchelling/goldpulse/internal/extract"
	"github.com/TobiSchelling/goldpulse/internal/logging"
	"github.com/TobiSchelling/goldpulse/internal/prompts"
	"github.com/TobiSchelling/goldpulse/internal/search"
)

const (
	resultsPerTopic = 5
	maxSummaryRunes = 300
	sourceName      = "Web search"
)

// markers add one analysis sentence when any keyword appears in the title.
// Order is fixed.
var markers = []struct {
	keywords []string
	sentence string
}{
	{
		[]string{"突破", "创新", "breakthrough", "innovation", "innovative"},
		"The story involves a technical breakthrough or innovation that may have a major impact on the industry.",
	},
	{
		[]string{"发布", "上市", "launch", "release", "unveil", "listing", "ipo"},
		"A product launch or listing marks a key milestone in commercialization.",
	},
	{
		[]string{"合作", "投资", "partner", "invest", "funding", "collaborat"},
		"A partnership or investment signals market confidence in the technology.",
	},
}

// Fetcher retrieves readable article text for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Index reports whether a story URL is already stored.
type Index interface {
	NewsExists(url string) (bool, error)
}

// Candidate is a curated story ready to persist.
type Candidate struct {
	Topic       Topic
	Title       string
	URL         string
	Summary     string
	Analysis    string
	Sentiment   extract.Sentiment
	Source      string
	PublishDate string
}

// Result holds the outcome of curating all topics.
type Result struct {
	Candidates []Candidate
	Searched   int
	Empty      int
	Dropped    int
	Backfilled int
	Known      int
}

// Curator selects and annotates stories.
type Curator struct {
	searcher  search.Searcher
	topics    []Topic
	policy    *Policy
	fetcher   Fetcher
	extractor *extract.Extractor
	index     Index
	now       func() time.Time
}

// NewCurator creates a curator. fetcher and extractor may be nil; without
// a fetcher empty snippets stay empty, without an extractor every story
// is neutral.
func NewCurator(searcher search.Searcher, topics []Topic, policy *Policy, fetcher Fetcher, extractor *extract.Extractor) *Curator {
	if policy == nil {
		policy = NewPolicy(nil)
	}
	return &Curator{
		searcher:  searcher,
		topics:    topics,
		policy:    policy,
		fetcher:   fetcher,
		extractor: extractor,
		now:       time.Now,
	}
}

// WithIndex makes the curator skip the backfill fetch for stories whose URL
// is already stored.
func (c *Curator) WithIndex(idx Index) *Curator {
	c.index = idx
	return c
}

// Curate runs one search per topic and returns at most one candidate each.
func (c *Curator) Curate(ctx context.Context, templates *prompts.Set) *Result {
	log := logging.For("curate")
	r := &Result{}

	for _, topic := range c.topics {
		if ctx.Err() != nil {
			break
		}
		query := templates.NewsQuery(topic.Slug, topic.Term)
		r.Searched++

		resp := c.searcher.Search(ctx, query, resultsPerTopic, search.DepthAdvanced)
		if len(resp.Results) == 0 {
			log.Warnf("no results for topic %s", topic.Slug)
			r.Empty++
			continue
		}

		// Provider order is the ranking; take the top hit.
		top := resp.Results[0]
		cand := c.build(topic, top)

		if cand.Summary == "" && c.fetcher != nil {
			if c.known(cand.URL) {
				log.Debugf("skipping backfill for stored story %s", cand.URL)
				r.Known++
			} else if text, err := c.fetcher.Fetch(ctx, cand.URL); err != nil {
				log.WithError(err).Debugf("backfill failed for %s", cand.URL)
			} else if text != "" {
				cand.Summary = truncate(text, maxSummaryRunes)
				r.Backfilled++
			}
		}

		if term, blocked := c.policy.Blocks(cand.Title, cand.Summary); blocked {
			log.Infof("dropped %s story %q: matched %q", topic.Slug, cand.Title, term)
			r.Dropped++
			continue
		}

		r.Candidates = append(r.Candidates, cand)
	}

	log.Infof("curated %d stories (%d topics, %d empty, %d dropped)", len(r.Candidates), r.Searched, r.Empty, r.Dropped)
	return r
}

func (c *Curator) known(url string) bool {
	if c.index == nil || url == "" {
		return false
	}
	exists, err := c.index.NewsExists(url)
	if err != nil {
		logging.For("curate").WithError(err).Warnf("checking stored story %s", url)
		return false
	}
	return exists
}

func (c *Curator) build(topic Topic, res search.Result) Candidate {
	sentiment := extract.Neutral
	if c.extractor != nil {
		sentiment = c.extractor.Sentiment(search.Response{Results: []search.Result{res}})
	}

	published := res.PublishedDate
	if published == "" {
		published = c.now().Format("2006-01-02")
	}

	return Candidate{
		Topic:       topic,
		Title:       strings.TrimSpace(res.Title),
		URL:         res.URL,
		Summary:     truncate(strings.TrimSpace(res.Content), maxSummaryRunes),
		Analysis:    Analyze(topic, res.Title),
		Sentiment:   sentiment,
		Source:      sourceName,
		PublishDate: published,
	}
}

// Analyze composes the topic boilerplate followed by one sentence per
// title marker present.
func Analyze(topic Topic, title string) string {
	sentences := append([]string(nil), topic.Boilerplate...)
	lower := strings.ToLower(title)
	for _, m := range markers {
		for _, kw := range m.keywords {
			if strings.Contains(lower, kw) {
				sentences = append(sentences, m.sentence)
				break
			}
		}
	}
	return strings.Join(sentences, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
