package server

import "github.com/TobiSchelling/goldpulse/internal/database"

type priceView struct {
	Date            string                 `json:"date"`
	PriceBase       float64                `json:"price_base"`
	PriceDerived    *float64               `json:"price_derived"`
	ChangeFraction  float64                `json:"change_fraction"`
	Sentiment       *string                `json:"sentiment"`
	Trend           *string                `json:"trend"`
	ForecastSummary *string                `json:"forecast_summary"`
	Forecast        *database.ForecastData `json:"forecast"`
	Source          *string                `json:"source"`
	CreatedAt       *string                `json:"created_at"`
}

func newPriceView(s *database.PriceSnapshot) priceView {
	return priceView{
		Date:            s.Date,
		PriceBase:       s.PriceBase,
		PriceDerived:    s.PriceDerived,
		ChangeFraction:  s.ChangeFraction,
		Sentiment:       s.Sentiment,
		Trend:           s.Trend,
		ForecastSummary: s.ForecastSummary,
		Forecast:        s.Forecast,
		Source:          s.Source,
		CreatedAt:       s.CreatedAt,
	}
}

type historyPoint struct {
	Date         string   `json:"date"`
	PriceBase    float64  `json:"price_base"`
	PriceDerived *float64 `json:"price_derived"`
}

type newsView struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Summary       *string `json:"summary"`
	Analysis      *string `json:"analysis"`
	Category      string  `json:"category"`
	Sentiment     *string `json:"sentiment"`
	Source        *string `json:"source"`
	PublishedDate *string `json:"published_date"`
	CreatedAt     *string `json:"created_at"`
}

func newNewsView(n *database.NewsItem) newsView {
	return newsView{
		ID:            n.ID,
		Title:         n.Title,
		URL:           n.URL,
		Summary:       n.Summary,
		Analysis:      n.Analysis,
		Category:      n.Category,
		Sentiment:     n.Sentiment,
		Source:        n.Source,
		PublishedDate: n.PublishedDate,
		CreatedAt:     n.CreatedAt,
	}
}

func newNewsViews(items []database.NewsItem) []newsView {
	out := make([]newsView, len(items))
	for i := range items {
		out[i] = newNewsView(&items[i])
	}
	return out
}

type cycleView struct {
	CycleID     string  `json:"cycle_id"`
	Kind        string  `json:"kind"`
	TriggeredBy string  `json:"triggered_by"`
	StartedAt   string  `json:"started_at"`
	FinishedAt  string  `json:"finished_at"`
	PriceSaved  bool    `json:"price_saved"`
	NewsSaved   int     `json:"news_saved"`
	NewsSkipped int     `json:"news_skipped"`
	Errors      int     `json:"errors"`
	Summary     *string `json:"summary"`
}

func newCycleView(r database.CycleReport) cycleView {
	return cycleView{
		CycleID:     r.CycleID,
		Kind:        r.Kind,
		TriggeredBy: r.TriggeredBy,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		PriceSaved:  r.PriceSaved,
		NewsSaved:   r.NewsSaved,
		NewsSkipped: r.NewsSkipped,
		Errors:      r.Errors,
		Summary:     r.Summary,
	}
}
