package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/goldpulse/internal/config"
	"github.com/TobiSchelling/goldpulse/internal/curate"
	"github.com/TobiSchelling/goldpulse/internal/database"
	"github.com/TobiSchelling/goldpulse/internal/extract"
	"github.com/TobiSchelling/goldpulse/internal/fetch"
	"github.com/TobiSchelling/goldpulse/internal/forecast"
	"github.com/TobiSchelling/goldpulse/internal/logging"
	"github.com/TobiSchelling/goldpulse/internal/market"
	"github.com/TobiSchelling/goldpulse/internal/prompts"
	"github.com/TobiSchelling/goldpulse/internal/search"
)

// Cycle kinds.
const (
	KindFull = "full"
	KindNews = "news"
)

const (
	priceResults     = 5
	sentimentResults = 5
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one refresh cycle.
type Result struct {
	CycleID     string
	Kind        string
	Steps       []StepResult
	PriceSaved  bool
	NewsSaved   int
	NewsSkipped int
	Snapshot    *database.PriceSnapshot
}

// Errors counts failed steps.
func (r *Result) Errors() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Pipeline runs refresh cycles: search, extract, synthesize, persist.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	searcher  search.Searcher
	extractor *extract.Extractor
	synth     *forecast.Synthesizer
	curator   *curate.Curator
	templates prompts.Provider
	calendar  *market.TradingCalendar
	now       func() time.Time
}

// Option overrides a collaborator built from config.
type Option func(*options)

type options struct {
	searcher search.Searcher
	synth    *forecast.Synthesizer
	fetcher  curate.Fetcher
	now      func() time.Time
}

// WithSearcher replaces the configured search gateways.
func WithSearcher(s search.Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithSynthesizer replaces the randomly seeded forecast synthesizer.
func WithSynthesizer(s *forecast.Synthesizer) Option {
	return func(o *options) { o.synth = s }
}

// WithFetcher replaces the article fetcher used for summary backfill.
func WithFetcher(f curate.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithClock sets the clock used for snapshot dates and cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a pipeline from config.
func New(cfg *config.Config, db *database.DB, opts ...Option) (*Pipeline, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	topics, err := curate.Resolve(cfg.Topics)
	if err != nil {
		return nil, err
	}

	searcher := o.searcher
	if searcher == nil {
		searcher = search.FromConfig(cfg.Search)
	}
	synth := o.synth
	if synth == nil {
		synth = forecast.New(cfg.Forecast.Volatility, cfg.Forecast.Band)
	}
	fetcher := o.fetcher
	if fetcher == nil && cfg.Policy.Backfill {
		fetcher = fetch.NewContentFetcher(15 * time.Second)
	}

	var cal *market.TradingCalendar
	if cfg.Market.SkipClosedDays {
		cal = market.NewTradingCalendar(cfg.Market.MIC)
	}

	extractor := extract.New(cfg.Extraction)

	return &Pipeline{
		cfg:       cfg,
		db:        db,
		searcher:  searcher,
		extractor: extractor,
		synth:     synth,
		curator:   curate.NewCurator(searcher, topics, curate.NewPolicy(cfg.Policy.Denylist), fetcher, extractor).WithIndex(db),
		templates: prompts.New(cfg.Prompts.Path),
		calendar:  cal,
		now:       o.now,
	}, nil
}

// Templates exposes the template provider so readers see the same file.
func (p *Pipeline) Templates() prompts.Provider {
	return p.templates
}

// RunFull refreshes the price snapshot and then the news topics.
func (p *Pipeline) RunFull(ctx context.Context, trigger string) *Result {
	return p.run(ctx, KindFull, trigger)
}

// RunNews refreshes the news topics only.
func (p *Pipeline) RunNews(ctx context.Context, trigger string) *Result {
	return p.run(ctx, KindNews, trigger)
}

func (p *Pipeline) run(ctx context.Context, kind, trigger string) *Result {
	r := &Result{CycleID: uuid.NewString(), Kind: kind}
	log := logging.For("pipeline").WithFields(logrus.Fields{"cycle": r.CycleID, "kind": kind})
	started := p.now()
	log.Infof("cycle started (%s)", trigger)

	set, err := p.templates.Load()
	if err != nil {
		log.WithError(err).Warn("template load failed, using defaults")
		set, _ = prompts.Defaults{}.Load()
	}

	if kind == KindFull {
		step := p.runPrice(ctx, set, r, log)
		r.Steps = append(r.Steps, step)
	}

	step := p.runNews(ctx, set, r, log)
	r.Steps = append(r.Steps, step)

	p.record(r, trigger, started, log)
	return r
}

func (p *Pipeline) runPrice(ctx context.Context, set *prompts.Set, r *Result, log *logrus.Entry) StepResult {
	log.Info("Step: price snapshot")
	now := p.now()

	if p.calendar != nil && !p.calendar.IsTradingDay(now) {
		return StepResult{Name: "Price", Summary: "Market closed, snapshot skipped"}
	}

	resp := p.searcher.Search(ctx, set.PriceQuery(), priceResults, search.DepthBasic)
	if resp.Empty() {
		log.Warn("price search returned nothing, no snapshot written")
		return StepResult{Name: "Price", Summary: "No price data returned"}
	}

	est := p.extractor.Price(resp)
	if est.Fallback && !p.cfg.Extraction.PersistFallback {
		return StepResult{Name: "Price", Summary: "No price found, fallback not persisted"}
	}

	sentiment := p.extractor.Sentiment(p.searcher.Search(ctx, set.SentimentQuery(), sentimentResults, search.DepthBasic))

	snapshot, err := p.buildSnapshot(database.DateOf(now), est, sentiment)
	if err != nil {
		return StepResult{Name: "Price", Err: err}
	}

	id, err := p.db.UpsertPriceSnapshot(*snapshot)
	if err != nil {
		log.WithError(err).Error("saving snapshot failed")
		return StepResult{Name: "Price", Err: err}
	}
	snapshot.ID = id
	r.PriceSaved = true
	r.Snapshot = snapshot

	return StepResult{
		Name:    "Price",
		Summary: fmt.Sprintf("Saved %s at %.2f via %s (%s, %s)", snapshot.Date, snapshot.PriceBase, est.Rule, sentiment, *snapshot.Trend),
	}
}

func (p *Pipeline) buildSnapshot(date string, est extract.Estimate, sentiment extract.Sentiment) (*database.PriceSnapshot, error) {
	f, err := p.synth.Synthesize(est.Value, sentiment)
	if err != nil {
		return nil, fmt.Errorf("synthesizing forecast: %w", err)
	}

	change := 0.0
	prev, err := p.db.PreviousPriceSnapshot(date)
	if err != nil {
		return nil, fmt.Errorf("reading previous snapshot: %w", err)
	}
	if prev != nil && prev.PriceBase > 0 {
		change = (est.Value - prev.PriceBase) / prev.PriceBase
	}

	sentimentLabel := string(sentiment)
	source := est.Rule
	return &database.PriceSnapshot{
		Date:            date,
		PriceBase:       est.Value,
		PriceDerived:    p.convert(est.Value),
		ChangeFraction:  change,
		Sentiment:       &sentimentLabel,
		Trend:           &f.Trend,
		ForecastSummary: &f.Summary,
		Forecast:        toForecastData(f),
		Source:          &source,
	}, nil
}

// convert derives the secondary-currency price per gram; nil when the
// base is not positive.
func (p *Pipeline) convert(base float64) *float64 {
	if base <= 0 {
		return nil
	}
	c := p.cfg.Conversion
	v, _ := decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(c.Rate)).
		Div(decimal.NewFromFloat(c.Divisor)).
		Round(2).
		Float64()
	return &v
}

func toForecastData(f *forecast.Forecast) *database.ForecastData {
	series := make([]database.ForecastPoint, len(f.Series))
	for i, pt := range f.Series {
		series[i] = database.ForecastPoint{
			OffsetMinutes: pt.OffsetMinutes,
			Label:         pt.Label,
			Price:         pt.Price,
			WallClock:     pt.WallClock,
		}
	}
	return &database.ForecastData{
		Trend:             f.Trend,
		VolatilityPercent: f.VolatilityPercent,
		ChangePercent:     f.ChangePercent,
		Support:           f.Support,
		Resistance:        f.Resistance,
		Series:            series,
	}
}

func (p *Pipeline) runNews(ctx context.Context, set *prompts.Set, r *Result, log *logrus.Entry) StepResult {
	log.Info("Step: news topics")
	curated := p.curator.Curate(ctx, set)

	var errs []error
	for _, c := range curated.Candidates {
		item := database.NewsItem{
			Title:         c.Title,
			URL:           c.URL,
			Summary:       &c.Summary,
			Analysis:      &c.Analysis,
			Category:      c.Topic.Slug,
			Sentiment:     strPtr(string(c.Sentiment)),
			Source:        strPtr(c.Source),
			PublishedDate: strPtr(c.PublishDate),
		}
		inserted, err := p.db.InsertNewsIfAbsent(item)
		if err != nil {
			log.WithError(err).Errorf("saving news %s failed", c.URL)
			errs = append(errs, err)
			continue
		}
		if inserted {
			r.NewsSaved++
		} else {
			r.NewsSkipped++
		}
	}

	return StepResult{
		Name: "News",
		Summary: fmt.Sprintf("Saved %d stories, %d already known (%d topics, %d empty, %d dropped by policy)",
			r.NewsSaved, r.NewsSkipped, curated.Searched, curated.Empty, curated.Dropped),
		Err: errors.Join(errs...),
	}
}

func (p *Pipeline) record(r *Result, trigger string, started time.Time, log *logrus.Entry) {
	lines := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Err != nil {
			lines = append(lines, fmt.Sprintf("%s: error: %v", s.Name, s.Err))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %s", s.Name, s.Summary))
		}
	}
	summary := strings.Join(lines, "; ")

	report := database.CycleReport{
		CycleID:     r.CycleID,
		Kind:        r.Kind,
		TriggeredBy: trigger,
		StartedAt:   started.UTC().Format(time.RFC3339),
		FinishedAt:  p.now().UTC().Format(time.RFC3339),
		PriceSaved:  r.PriceSaved,
		NewsSaved:   r.NewsSaved,
		NewsSkipped: r.NewsSkipped,
		Errors:      r.Errors(),
		Summary:     &summary,
	}
	if _, err := p.db.InsertCycleReport(report); err != nil {
		log.WithError(err).Error("saving cycle report failed")
	}
	log.Infof("cycle finished: %s", summary)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
