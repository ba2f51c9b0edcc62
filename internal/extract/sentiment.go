package extract

import (
	"strings"

	"github.com/TobiSchelling/goldpulse/internal/search"
)

// Sentiment is the coarse market mood read from headlines.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// Sentiment counts bullish and bearish keyword hits across result titles.
// The side with strictly more hits wins; ties and empty input are neutral.
func (e *Extractor) Sentiment(resp search.Response) Sentiment {
	var up, down int
	for _, r := range resp.Results {
		title := strings.ToLower(r.Title)
		up += countHits(title, e.bullish)
		down += countHits(title, e.bearish)
	}
	switch {
	case up > down:
		return Bullish
	case down > up:
		return Bearish
	default:
		return Neutral
	}
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		n += strings.Count(text, kw)
	}
	return n
}
