package database

// PriceSnapshot is the stored price record for one calendar date.
type PriceSnapshot struct {
	ID              int64
	Date            string
	PriceBase       float64
	PriceDerived    *float64
	ChangeFraction  float64
	Sentiment       *string
	Trend           *string
	ForecastSummary *string
	Forecast        *ForecastData
	Source          *string
	CreatedAt       *string
}

// ForecastData is the synthesized series stored as JSON with a snapshot.
type ForecastData struct {
	Trend             string          `json:"trend"`
	VolatilityPercent float64         `json:"volatility_percent"`
	ChangePercent     float64         `json:"change_percent"`
	Support           float64         `json:"support"`
	Resistance        float64         `json:"resistance"`
	Series            []ForecastPoint `json:"series"`
}

// ForecastPoint is one step of a forecast series.
type ForecastPoint struct {
	OffsetMinutes int     `json:"offset_minutes"`
	Label         string  `json:"label"`
	Price         float64 `json:"price"`
	WallClock     string  `json:"time"`
}

// NewsItem is a curated news entry. URL is unique.
type NewsItem struct {
	ID            int64
	Title         string
	URL           string
	Summary       *string
	Analysis      *string
	Category      string
	Sentiment     *string
	Source        *string
	PublishedDate *string
	CreatedAt     *string
}

// CycleReport records the outcome of one refresh cycle.
type CycleReport struct {
	ID          int64
	CycleID     string
	Kind        string
	TriggeredBy string
	StartedAt   string
	FinishedAt  string
	PriceSaved  bool
	NewsSaved   int
	NewsSkipped int
	Errors      int
	Summary     *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	PriceSnapshots    int
	FallbackSnapshots int
	NewsItems         int
	NewsCategories    int
	Cycles            int
	FailedCycles      int
	LatestPriceDate   string
}
