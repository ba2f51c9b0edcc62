// Package forecast synthesizes a short illustrative price path around a
// base price. The series is random, biased by sentiment; it is not a model.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TobiSchelling/goldpulse/internal/extract"
)

// Trend labels.
const (
	Rising   = "rising"
	Falling  = "falling"
	Sideways = "sideways"
)

// sidewaysThreshold is the absolute first-to-last move below which a series
// is reported as sideways.
const sidewaysThreshold = 10.0

// ErrNonPositiveBase is returned for a base price <= 0.
var ErrNonPositiveBase = errors.New("forecast: base price must be positive")

var offsets = []struct {
	minutes int
	label   string
}{
	{0, "now"},
	{10, "in 10 min"},
	{20, "in 20 min"},
	{30, "in 30 min"},
}

// Rand is the random source; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Point is one forecast step.
type Point struct {
	OffsetMinutes int
	Label         string
	Price         float64
	WallClock     string
}

// Forecast is a synthesized 30-minute outlook.
type Forecast struct {
	Trend             string
	VolatilityPercent float64
	ChangePercent     float64
	Support           float64
	Resistance        float64
	Series            []Point
	Summary           string
}

// Synthesizer produces forecasts. Zero values for Volatility and Band use
// the defaults (0.002 and 20).
type Synthesizer struct {
	Volatility float64
	Band       float64
	Rand       Rand
	Now        func() time.Time
}

// New creates a synthesizer backed by a time-seeded random source.
func New(volatility, band float64) *Synthesizer {
	return &Synthesizer{
		Volatility: volatility,
		Band:       band,
		Rand:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		Now:        time.Now,
	}
}

// Synthesize builds a forecast around base. Draw order: one trend scalar,
// then one noise term per point.
func (s *Synthesizer) Synthesize(base float64, sentiment extract.Sentiment) (*Forecast, error) {
	if base <= 0 || math.IsNaN(base) || math.IsInf(base, 0) {
		return nil, ErrNonPositiveBase
	}
	vol := s.Volatility
	if vol <= 0 {
		vol = 0.002
	}
	band := s.Band
	if band <= 0 {
		band = 20
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	start := now()

	trend := s.drawTrend(sentiment)

	series := make([]Point, len(offsets))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, o := range offsets {
		noise := (s.Rand.Float64() - 0.5) * base * vol * 2
		drift := trend * base * vol * float64(i) * 0.5
		price := round2(base + noise + drift)
		series[i] = Point{
			OffsetMinutes: o.minutes,
			Label:         o.label,
			Price:         price,
			WallClock:     start.Add(time.Duration(o.minutes) * time.Minute).Format("15:04"),
		}
		lo = math.Min(lo, price)
		hi = math.Max(hi, price)
	}

	first, last := series[0].Price, series[len(series)-1].Price
	change := last - first

	f := &Forecast{
		Trend:             trendLabel(change),
		VolatilityPercent: round2((hi - lo) / base * 100),
		ChangePercent:     round2(change / first * 100),
		Support:           round2(base - band),
		Resistance:        round2(base + band),
		Series:            series,
	}
	f.Summary = summarize(f)
	return f, nil
}

// drawTrend maps one uniform draw into the sentiment's trend range:
// bullish [0.2, 1), bearish [-1, -0.2), neutral [-0.2, 0.2).
func (s *Synthesizer) drawTrend(sentiment extract.Sentiment) float64 {
	r := s.Rand.Float64()
	switch sentiment {
	case extract.Bullish:
		return 0.2 + r*0.8
	case extract.Bearish:
		return -1 + r*0.8
	default:
		return -0.2 + r*0.4
	}
}

func trendLabel(change float64) string {
	switch {
	case math.Abs(change) < sidewaysThreshold:
		return Sideways
	case change > 0:
		return Rising
	default:
		return Falling
	}
}

func summarize(f *Forecast) string {
	switch f.Trend {
	case Rising:
		return fmt.Sprintf(
			"London gold is expected to edge higher over the next 30 minutes, up about %.2f%%. "+
				"Headlines lean positive; watch resistance near %.2f and manage risk.",
			f.ChangePercent, f.Resistance)
	case Falling:
		return fmt.Sprintf(
			"London gold may pull back over the next 30 minutes, down about %.2f%%. "+
				"Headlines show some pressure and support near %.2f may be tested; trade cautiously.",
			math.Abs(f.ChangePercent), f.Support)
	default:
		return fmt.Sprintf(
			"London gold is expected to hold steady over the next 30 minutes with little movement, "+
				"between support %.2f and resistance %.2f. Overall sentiment reads neutral.",
			f.Support, f.Resistance)
	}
}

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
