package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/goldpulse/internal/logging"
)

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedGateway answers queries from RSS/Atom feeds: an item matches when
// its title or description contains any query term. It never produces an
// Answer.
type FeedGateway struct {
	feeds  []FeedConfig
	parser *gofeed.Parser
}

// NewFeedGateway creates a gateway over the given feeds.
func NewFeedGateway(feeds []FeedConfig) *FeedGateway {
	return &FeedGateway{feeds: feeds, parser: gofeed.NewParser()}
}

func (g *FeedGateway) Search(ctx context.Context, query string, count int, _ Depth) Response {
	count, _ = normalize(count, DepthBasic)
	log := logging.For("search").WithField("provider", "feed")

	terms := queryTerms(query)
	if len(terms) == 0 {
		return Response{}
	}

	var results []Result
	for _, fc := range g.feeds {
		if len(results) >= count || ctx.Err() != nil {
			break
		}
		feed, err := g.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.WithError(err).Warnf("failed to parse feed %s", fc.URL)
			continue
		}

		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}
		for _, item := range feed.Items {
			if len(results) >= count {
				break
			}
			r, ok := itemResult(item)
			if !ok || !matchesAny(r.Title+" "+r.Content, terms) {
				continue
			}
			results = append(results, r)
		}
		log.Debugf("%d matching items after %s", len(results), name)
	}

	return Response{Results: results}
}

func itemResult(item *gofeed.Item) (Result, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return Result{}, false
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format("2006-01-02")
	}

	content := item.Description
	if content == "" {
		content = item.Content
	}

	return Result{
		Title:         title,
		URL:           link,
		Content:       stripHTML(content),
		PublishedDate: published,
	}, true
}

// queryTerms splits a query into lowercase terms, dropping very short
// latin words that would match almost anything.
func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if len(f) < 3 && isASCII(f) {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

func matchesAny(text string, terms []string) bool {
	text = strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// stripHTML reduces a feed description to plain text. Block elements are
// separated by a space so adjacent paragraphs do not run together.
func stripHTML(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return strings.Join(strings.Fields(text), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	doc.Find("p, div, br, li, h1, h2, h3, h4, td").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
