package forecast

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/goldpulse/internal/extract"
)

// seqRand replays a fixed sequence of draws, cycling when exhausted.
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

var fixedNow = func() time.Time { return time.Date(2026, 2, 6, 14, 55, 0, 0, time.UTC) }

func newTestSynth(vals ...float64) *Synthesizer {
	return &Synthesizer{Volatility: 0.002, Band: 20, Rand: &seqRand{vals: vals}, Now: fixedNow}
}

func TestSynthesizeShape(t *testing.T) {
	f, err := newTestSynth(0.5).Synthesize(2375, extract.Neutral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Series) != 4 {
		t.Fatalf("expected 4 points, got %d", len(f.Series))
	}
	wantOffsets := []int{0, 10, 20, 30}
	wantClock := []string{"14:55", "15:05", "15:15", "15:25"}
	for i, p := range f.Series {
		if p.OffsetMinutes != wantOffsets[i] {
			t.Errorf("point %d: expected offset %d, got %d", i, wantOffsets[i], p.OffsetMinutes)
		}
		if p.WallClock != wantClock[i] {
			t.Errorf("point %d: expected wall clock %s, got %s", i, wantClock[i], p.WallClock)
		}
		if p.Label == "" {
			t.Errorf("point %d: expected label", i)
		}
	}
}

func TestSupportResistanceSpread(t *testing.T) {
	for _, base := range []float64{2000, 2375.123, 2999.99} {
		f, err := newTestSynth(0.3, 0.9, 0.1).Synthesize(base, extract.Bullish)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs((f.Resistance-f.Support)-40) > 1e-9 {
			t.Errorf("base %v: expected spread 40, got %v", base, f.Resistance-f.Support)
		}
	}
}

func TestFlatSeriesIsSideways(t *testing.T) {
	// Trend draw 0.5 under neutral gives trend 0; noise draws of 0.5 give 0.
	f, err := newTestSynth(0.5).Synthesize(2400, extract.Neutral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range f.Series {
		if p.Price != 2400 {
			t.Errorf("expected flat series at 2400, got %v", p.Price)
		}
	}
	if f.Trend != Sideways {
		t.Errorf("expected sideways, got %s", f.Trend)
	}
	if f.VolatilityPercent != 0 || f.ChangePercent != 0 {
		t.Errorf("expected zero volatility and change, got %v / %v", f.VolatilityPercent, f.ChangePercent)
	}
	if !strings.Contains(f.Summary, "hold steady") {
		t.Errorf("expected steady summary, got %q", f.Summary)
	}
}

func TestBullishRising(t *testing.T) {
	// Trend draw 1.0 -> trend 1.0; noise draws 0.5 -> 0.
	// Drift at point 3 = 1.0 * 2400 * 0.002 * 3 * 0.5 = 7.2, so use a larger base.
	f, err := newTestSynth(1.0, 0.5, 0.5, 0.5, 0.5).Synthesize(5000, extract.Bullish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1.0 * 5000 * 0.002 * 3 * 0.5 = 15
	if f.Series[3].Price != 5015 {
		t.Errorf("expected last price 5015, got %v", f.Series[3].Price)
	}
	if f.Trend != Rising {
		t.Errorf("expected rising, got %s", f.Trend)
	}
	if f.ChangePercent != 0.3 {
		t.Errorf("expected change 0.3%%, got %v", f.ChangePercent)
	}
	if !strings.Contains(f.Summary, "higher") || !strings.Contains(f.Summary, "0.30%") {
		t.Errorf("unexpected summary %q", f.Summary)
	}
}

func TestBearishFalling(t *testing.T) {
	// Trend draw 0.0 -> trend -1.0.
	f, err := newTestSynth(0.0, 0.5, 0.5, 0.5, 0.5).Synthesize(5000, extract.Bearish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Series[3].Price != 4985 {
		t.Errorf("expected last price 4985, got %v", f.Series[3].Price)
	}
	if f.Trend != Falling {
		t.Errorf("expected falling, got %s", f.Trend)
	}
	if !strings.Contains(f.Summary, "pull back") {
		t.Errorf("unexpected summary %q", f.Summary)
	}
}

func TestSmallMoveSnapsToSideways(t *testing.T) {
	// At base 2400 a full bullish trend only drifts 7.2 over the series.
	f, err := newTestSynth(1.0, 0.5, 0.5, 0.5, 0.5).Synthesize(2400, extract.Bullish)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Series[3].Price <= f.Series[0].Price {
		t.Fatalf("expected an upward move, got %v -> %v", f.Series[0].Price, f.Series[3].Price)
	}
	if f.Trend != Sideways {
		t.Errorf("expected moves under 10 to be sideways, got %s", f.Trend)
	}
}

func TestTrendLabelConsistentWithSeries(t *testing.T) {
	draws := [][]float64{
		{0.9, 0.1, 0.8, 0.3, 0.95},
		{0.05, 0.7, 0.2, 0.6, 0.01},
		{0.5, 0.0, 1.0, 0.0, 1.0},
	}
	for _, sentiment := range []extract.Sentiment{extract.Bullish, extract.Bearish, extract.Neutral} {
		for _, d := range draws {
			f, err := newTestSynth(d...).Synthesize(2650, sentiment)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			change := f.Series[3].Price - f.Series[0].Price
			want := Sideways
			if change >= sidewaysThreshold {
				want = Rising
			} else if change <= -sidewaysThreshold {
				want = Falling
			}
			if f.Trend != want {
				t.Errorf("%s %v: change %v labelled %s, want %s", sentiment, d, change, f.Trend, want)
			}
		}
	}
}

func TestPricesRoundedToCents(t *testing.T) {
	f, err := newTestSynth(0.123, 0.456, 0.789, 0.321, 0.654).Synthesize(2377.777, extract.Neutral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range f.Series {
		if cents := p.Price * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Errorf("price %v has more than 2 decimals", p.Price)
		}
	}
}

func TestDrawTrendRanges(t *testing.T) {
	cases := []struct {
		sentiment extract.Sentiment
		lo, hi    float64
	}{
		{extract.Bullish, 0.2, 1.0},
		{extract.Bearish, -1.0, -0.2},
		{extract.Neutral, -0.2, 0.2},
	}
	for _, c := range cases {
		for _, r := range []float64{0, 0.25, 0.5, 0.999} {
			s := newTestSynth(r)
			got := s.drawTrend(c.sentiment)
			if got < c.lo || got >= c.hi {
				t.Errorf("%s draw %v: trend %v outside [%v, %v)", c.sentiment, r, got, c.lo, c.hi)
			}
		}
	}
}

func TestNonPositiveBase(t *testing.T) {
	for _, base := range []float64{0, -1, math.NaN()} {
		if _, err := newTestSynth(0.5).Synthesize(base, extract.Neutral); !errors.Is(err, ErrNonPositiveBase) {
			t.Errorf("base %v: expected ErrNonPositiveBase, got %v", base, err)
		}
	}
}

func TestNewUsesDefaults(t *testing.T) {
	s := New(0, 0)
	f, err := s.Synthesize(2400, extract.Neutral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Support != 2380 || f.Resistance != 2420 {
		t.Errorf("expected default band of 20, got %v / %v", f.Support, f.Resistance)
	}
	for _, p := range f.Series {
		if math.Abs(p.Price-2400) > 2400*0.002*1+2400*0.002*0.2*1.5+0.01 {
			t.Errorf("price %v too far from base", p.Price)
		}
	}
}
