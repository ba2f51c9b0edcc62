// Package extract pulls a numeric price estimate and a sentiment signal out
// of unstructured search responses.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/TobiSchelling/goldpulse/internal/config"
	"github.com/TobiSchelling/goldpulse/internal/logging"
	"github.com/TobiSchelling/goldpulse/internal/search"
)

// Rule names reported in an Estimate.
const (
	RuleAnswerUnit    = "answer-unit"
	RuleMarketKeyword = "market-keyword"
	RuleFallback      = "fallback"
)

var (
	thousandsSep = regexp.MustCompile(`(\d),(\d{3})\b`)
	numberToken  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	answerUnit   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:usd|us\$|美元|dollars?|per\s+ounce|/\s*oz|/\s*ounce)`)
	marketTerms  = regexp.MustCompile(`london gold|lbma.*gold|gold fix.*london|伦敦金`)

	// a month name, optionally followed by a day, directly before a token
	monthBefore = regexp.MustCompile(`\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(?:\d{1,2}(?:st|nd|rd|th)?,?\s+)?$`)
)

// dateSeparators join the digit groups of dates, times and phone numbers.
const dateSeparators = "-/:"

// Estimate is the outcome of running the rule list.
type Estimate struct {
	Value    float64
	Rule     string
	Fallback bool
}

// Rule is one extraction strategy. Apply reports false when the rule
// produced nothing valid.
type Rule struct {
	Name  string
	Apply func(resp search.Response) (float64, bool)
}

// Extractor evaluates Rules in order and stops at the first success.
type Extractor struct {
	Rules    []Rule
	Sentinel float64
	bullish  []string
	bearish  []string
}

// New builds the standard rule list from config.
func New(cfg config.Extraction) *Extractor {
	return &Extractor{
		Rules: []Rule{
			AnswerUnitRule(),
			MarketKeywordRule(cfg.MinPrice, cfg.MaxPrice),
		},
		Sentinel: cfg.Sentinel,
		bullish:  lowerAll(cfg.Bullish),
		bearish:  lowerAll(cfg.Bearish),
	}
}

// Price returns the first valid rule result, or the sentinel.
func (e *Extractor) Price(resp search.Response) Estimate {
	for _, r := range e.Rules {
		if v, ok := r.Apply(resp); ok {
			return Estimate{Value: v, Rule: r.Name}
		}
	}
	logging.For("extract").Infof("no price found in response, using fallback %.2f", e.Sentinel)
	return Estimate{Value: e.Sentinel, Rule: RuleFallback, Fallback: true}
}

// AnswerUnitRule reads the first 4-5 digit number followed by a currency or
// per-ounce marker in the provider answer.
func AnswerUnitRule() Rule {
	return Rule{
		Name: RuleAnswerUnit,
		Apply: func(resp search.Response) (float64, bool) {
			text := normalizeNumbers(resp.Answer)
			for _, m := range answerUnit.FindAllStringSubmatch(text, -1) {
				if v, ok := parsePriceToken(m[1]); ok && v > 0 {
					return v, true
				}
			}
			return 0, false
		},
	}
}

// MarketKeywordRule scans results that mention the London market and takes
// the first 4-5 digit number inside [min, max].
func MarketKeywordRule(min, max float64) Rule {
	return Rule{
		Name: RuleMarketKeyword,
		Apply: func(resp search.Response) (float64, bool) {
			for _, r := range resp.Results {
				text := strings.ToLower(normalizeNumbers(r.Title + " " + r.Content))
				if !marketTerms.MatchString(text) {
					continue
				}
				for _, loc := range numberToken.FindAllStringIndex(text, -1) {
					if partOfDate(text, loc[0], loc[1]) {
						continue
					}
					v, ok := parsePriceToken(text[loc[0]:loc[1]])
					if ok && v >= min && v <= max {
						return v, true
					}
				}
			}
			return 0, false
		},
	}
}

// partOfDate reports whether text[start:end] is a piece of a date, time or
// phone number rather than a standalone figure: "2025-03-04", "03/04/2025",
// "2025年", "March 4, 2025".
func partOfDate(text string, start, end int) bool {
	if start > 0 && strings.IndexByte(dateSeparators, text[start-1]) >= 0 {
		return true
	}
	if end < len(text) {
		if strings.IndexByte(dateSeparators, text[end]) >= 0 || strings.HasPrefix(text[end:], "年") {
			return true
		}
	}
	if !strings.Contains(text[start:end], ".") && end-start == 4 {
		return monthBefore.MatchString(text[:start])
	}
	return false
}

// parsePriceToken accepts numbers whose integer part has 4 or 5 digits.
func parsePriceToken(tok string) (float64, bool) {
	intPart, _, _ := strings.Cut(tok, ".")
	if len(intPart) < 4 || len(intPart) > 5 {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normalizeNumbers removes thousands separators: "2,375.50" -> "2375.50".
func normalizeNumbers(s string) string {
	for {
		next := thousandsSep.ReplaceAllString(s, "$1$2")
		if next == s {
			return s
		}
		s = next
	}
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
