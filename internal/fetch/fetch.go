package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/goldpulse/internal/logging"
)

// minTextLength is the shortest extraction treated as real article text.
const minTextLength = 100

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 4 << 20

// failureTTL is how long a domain that answered with an HTTP error is skipped.
const failureTTL = time.Hour

// ContentFetcher fetches article text via HTTP + readability extraction.
// A domain that answered with an HTTP error is skipped for failureTTL.
type ContentFetcher struct {
	client *http.Client
	now    func() time.Time

	mu            sync.Mutex
	failedDomains map[string]time.Time
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		now:           time.Now,
		failedDomains: make(map[string]time.Time),
	}
}

// Fetch returns the readable text of articleURL. Empty text with a nil
// error means the page had nothing extractable.
func (f *ContentFetcher) Fetch(ctx context.Context, articleURL string) (string, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid url %q", articleURL)
	}
	domain := strings.ToLower(parsedURL.Host)

	if f.domainFailed(domain) {
		return "", fmt.Errorf("skipping %s: earlier HTTP error from domain", articleURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "goldpulse/1.0 (market digest)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", articleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		f.markFailed(domain)
		logging.For("fetch").Debugf("HTTP %d for %s, skipping remaining from %s", resp.StatusCode, articleURL, domain)
		return "", &httpError{code: resp.StatusCode}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len([]rune(text)) > minTextLength {
		return text, nil
	}
	return "", nil
}

func (f *ContentFetcher) domainFailed(domain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, failed := f.failedDomains[domain]
	if !failed {
		return false
	}
	if !f.now().Before(until) {
		delete(f.failedDomains, domain)
		return false
	}
	return true
}

func (f *ContentFetcher) markFailed(domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedDomains[domain] = f.now().Add(failureTTL)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, http.StatusText(e.code))
}
