// Package prompts supplies the search query templates used by a refresh
// cycle. Templates come from a markdown file with one "## <key>" section per
// template, or from built-in defaults when no file is available.
package prompts

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/goldpulse/internal/logging"
)

const (
	KeyPriceQuery     = "price_query"
	KeySentimentQuery = "sentiment_query"
	KeyNewsQuery      = "news_query"
)

const (
	SourceFile    = "file"
	SourceDefault = "default"
)

var defaults = map[string]string{
	KeyPriceQuery:     "London gold price today LBMA gold fix USD per ounce",
	KeySentimentQuery: "gold price news market outlook today",
	KeyNewsQuery:      "{topic} 最新新闻 热点",
}

// headingAliases maps legacy section titles onto template keys.
var headingAliases = map[string]string{
	"金价搜索提示词":  KeyPriceQuery,
	"金价搜索":     KeyPriceQuery,
	"市场情绪提示词":  KeySentimentQuery,
	"市场情绪":     KeySentimentQuery,
	"新闻搜索提示词":  KeyNewsQuery,
	"新闻搜索":     KeyNewsQuery,
	"price query": KeyPriceQuery,
	"news query":  KeyNewsQuery,
}

// Set is one resolved collection of templates.
type Set struct {
	Templates map[string]string
	Markdown  string
	Source    string
	Path      string
	LoadedAt  time.Time
}

// Provider yields the current template set.
type Provider interface {
	Load() (*Set, error)
}

// New returns a file-backed provider, or the defaults when path is empty.
func New(path string) Provider {
	if path == "" {
		return Defaults{}
	}
	return &FileProvider{Path: path}
}

// Defaults serves the built-in templates.
type Defaults struct{}

func (Defaults) Load() (*Set, error) {
	templates := make(map[string]string, len(defaults))
	for k, v := range defaults {
		templates[k] = v
	}
	return &Set{
		Templates: templates,
		Markdown:  renderMarkdown(templates),
		Source:    SourceDefault,
		LoadedAt:  time.Now(),
	}, nil
}

// FileProvider re-reads its file on every Load so edits apply to the next
// cycle without a restart. An unreadable file falls back to the defaults.
type FileProvider struct {
	Path string
}

func (p *FileProvider) Load() (*Set, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		logging.For("prompts").WithError(err).Warnf("template file %s unavailable, using defaults", p.Path)
		return Defaults{}.Load()
	}

	templates := Parse(string(data))
	for k, v := range defaults {
		if _, ok := templates[k]; !ok {
			templates[k] = v
		}
	}
	return &Set{
		Templates: templates,
		Markdown:  string(data),
		Source:    SourceFile,
		Path:      p.Path,
		LoadedAt:  time.Now(),
	}, nil
}

// Parse splits markdown into "## heading" sections. Keys are the heading
// lowercased with spaces turned into underscores, so "## News Query.ai"
// yields "news_query.ai". Section bodies are joined into one line.
func Parse(markdown string) map[string]string {
	templates := make(map[string]string)

	var key string
	var body []string
	flush := func() {
		if key == "" {
			return
		}
		if text := strings.Join(body, " "); text != "" {
			templates[key] = text
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			flush()
			key = headingKey(strings.TrimPrefix(trimmed, "## "))
			body = nil
			continue
		}
		if key == "" || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		body = append(body, trimmed)
	}
	flush()
	return templates
}

func headingKey(title string) string {
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), ":："))
	if k, ok := headingAliases[strings.ToLower(title)]; ok {
		return k
	}
	return strings.ReplaceAll(strings.ToLower(title), " ", "_")
}

// Get returns the template for key, falling back to the built-in default.
func (s *Set) Get(key string) string {
	if t, ok := s.Templates[key]; ok && t != "" {
		return t
	}
	return defaults[key]
}

// PriceQuery returns the price search query.
func (s *Set) PriceQuery() string {
	return s.Get(KeyPriceQuery)
}

// SentimentQuery returns the market sentiment search query.
func (s *Set) SentimentQuery() string {
	return s.Get(KeySentimentQuery)
}

// NewsQuery renders the news query for a topic. A "news_query.<slug>"
// section overrides the generic template for that topic.
func (s *Set) NewsQuery(slug, term string) string {
	tmpl, ok := s.Templates[KeyNewsQuery+"."+slug]
	if !ok || tmpl == "" {
		tmpl = s.Get(KeyNewsQuery)
	}
	return strings.ReplaceAll(tmpl, "{topic}", term)
}

func renderMarkdown(templates map[string]string) string {
	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# Search templates\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", k, templates[k])
	}
	return b.String()
}
