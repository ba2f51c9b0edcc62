// Package search queries third-party web search providers. Every gateway
// degrades to an empty Response on failure instead of returning an error.
package search

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/TobiSchelling/goldpulse/internal/config"
	"github.com/TobiSchelling/goldpulse/internal/logging"
)

// Depth selects how thorough a provider search is.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// Result is a single search hit.
type Result struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	PublishedDate string `json:"published_date,omitempty"`
}

// Response is a provider answer plus ranked results.
type Response struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

// Empty reports whether the response carries nothing usable.
func (r Response) Empty() bool {
	return strings.TrimSpace(r.Answer) == "" && len(r.Results) == 0
}

// Searcher runs a query. Implementations never fail: a provider error,
// timeout or unparseable payload yields the zero Response.
type Searcher interface {
	Search(ctx context.Context, query string, count int, depth Depth) Response
}

// Chain tries each searcher in order and returns the first non-empty response.
type Chain []Searcher

func (c Chain) Search(ctx context.Context, query string, count int, depth Depth) Response {
	for _, s := range c {
		if ctx.Err() != nil {
			break
		}
		if resp := s.Search(ctx, query, count, depth); !resp.Empty() {
			return resp
		}
	}
	return Response{}
}

// FromConfig builds the gateway chain named by cfg.Providers.
func FromConfig(cfg config.Search) Searcher {
	var chain Chain
	for _, name := range cfg.Providers {
		switch name {
		case "script":
			if cfg.Script.Path != "" {
				chain = append(chain, NewScriptGateway(cfg.Script.Path, cfg.Script.Timeout))
			}
		case "tavily":
			chain = append(chain, NewTavilyGateway(cfg.Tavily))
		case "feed":
			feeds := make([]FeedConfig, len(cfg.Feeds))
			for i, f := range cfg.Feeds {
				feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
			}
			chain = append(chain, NewFeedGateway(feeds))
		}
	}
	if len(chain) == 1 {
		return chain[0]
	}
	return chain
}

func normalize(count int, depth Depth) (int, Depth) {
	if count < 1 {
		count = 1
	}
	if depth != DepthBasic && depth != DepthAdvanced {
		depth = DepthBasic
	}
	return count, depth
}

// decodeResponse parses provider output, tolerating markdown code fences
// and log noise around the JSON object.
func decodeResponse(text string) (Response, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{}, false
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Response{}, false
	}

	var resp Response
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		logging.For("search").WithError(err).Warn("unparseable search output")
		return Response{}, false
	}
	return resp, true
}
