package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const articlePage = `<html><head><title>Quantum milestone</title></head><body>
<nav>Home | About</nav>
<article>
<h1>Quantum milestone</h1>
<p>%s</p>
<p>%s</p>
</article>
</body></html>`

func TestFetchExtractsArticleText(t *testing.T) {
	para := strings.Repeat("Researchers demonstrated a stable logical qubit across many cycles. ", 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "goldpulse") {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, articlePage, para, para)
	}))
	defer srv.Close()

	f := NewContentFetcher(0)
	text, err := f.Fetch(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "logical qubit") {
		t.Errorf("expected article text, got %q", text)
	}
}

func TestFetchShortPageReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Too short.</p></body></html>")
	}))
	defer srv.Close()

	text, err := NewContentFetcher(0).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestFetchHTTPErrorSkipsDomain(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewContentFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL+"/a")
	var he *httpError
	if !errors.As(err, &he) || he.code != http.StatusForbidden {
		t.Fatalf("expected 403 httpError, got %v", err)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/b"); err == nil {
		t.Error("expected second fetch from failed domain to error")
	}
	if hits != 1 {
		t.Errorf("expected one request to the failed domain, got %d", hits)
	}
}

func TestFetchRetriesDomainAfterTTL(t *testing.T) {
	para := strings.Repeat("Researchers demonstrated a stable logical qubit across many cycles. ", 6)
	var status atomic.Int32
	status.Store(http.StatusForbidden)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, articlePage, para, para)
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	f := NewContentFetcher(0)
	f.now = func() time.Time { return now }

	if _, err := f.Fetch(context.Background(), srv.URL+"/a"); err == nil {
		t.Fatal("expected 403 error")
	}
	status.Store(http.StatusOK)

	now = now.Add(failureTTL - time.Minute)
	if _, err := f.Fetch(context.Background(), srv.URL+"/b"); err == nil {
		t.Error("expected domain to stay skipped within the TTL")
	}

	now = now.Add(2 * time.Minute)
	text, err := f.Fetch(context.Background(), srv.URL+"/c")
	if err != nil {
		t.Fatalf("expected domain to be retried after the TTL, got %v", err)
	}
	if !strings.Contains(text, "logical qubit") {
		t.Errorf("expected article text, got %q", text)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	if _, err := NewContentFetcher(0).Fetch(context.Background(), "not a url"); err == nil {
		t.Error("expected error for invalid url")
	}
}
