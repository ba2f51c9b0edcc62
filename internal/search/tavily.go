package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/goldpulse/internal/config"
	"github.com/TobiSchelling/goldpulse/internal/logging"
)

// TavilyGateway calls the Tavily search HTTP API directly.
type TavilyGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewTavilyGateway creates a Tavily client. The API key is read from the
// environment variable named in cfg.
func NewTavilyGateway(cfg config.TavilyConfig) *TavilyGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 20
	}
	return &TavilyGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

// IsConfigured returns whether the API key is available.
func (g *TavilyGateway) IsConfigured() bool {
	return g.apiKey != ""
}

func (g *TavilyGateway) Search(ctx context.Context, query string, count int, depth Depth) Response {
	count, depth = normalize(count, depth)
	log := logging.For("search").WithField("provider", "tavily")

	if !g.IsConfigured() {
		log.Debug("Tavily API key not set, skipping")
		return Response{}
	}

	ctx, cancel := context.WithTimeout(ctx, g.client.Timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		log.WithError(err).Warn("rate limiter wait aborted")
		return Response{}
	}

	payload, err := json.Marshal(map[string]any{
		"api_key":             g.apiKey,
		"query":               query,
		"search_depth":        string(depth),
		"max_results":         count,
		"include_answer":      true,
		"include_images":      false,
		"include_raw_content": false,
	})
	if err != nil {
		return Response{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		log.WithError(err).Warn("request error")
		return Response{}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		log.WithError(err).Warnf("search failed for %q", query)
		return Response{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("HTTP %d for %q", resp.StatusCode, query)
		return Response{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		log.WithError(err).Warn("reading response")
		return Response{}
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		log.WithError(err).Warn("decode error")
		return Response{}
	}

	// Drop hits that cannot be stored or displayed.
	kept := result.Results[:0]
	for _, r := range result.Results {
		if r.URL == "" || strings.TrimSpace(r.Title) == "" {
			continue
		}
		r.Title = strings.TrimSpace(r.Title)
		r.Content = strings.TrimSpace(r.Content)
		kept = append(kept, r)
	}
	result.Results = kept

	log.Debugf("%d results for %q", len(result.Results), query)
	return result
}
