package normalizer

import (
	"regexp"
	"strings"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

type stockRule struct {
	status   domain.StockStatus
	keywords []string
	patterns []*regexp.Regexp
}

// stockRules are checked in order; the first match wins. Negative phrases
// come before the positive ones they contain ("unavailable", "not in stock").
var stockRules = []stockRule{
	{status: domain.StockDiscontinued, keywords: []string{"discontinued", "no longer available", "no longer sold", "end of life"}},
	{status: domain.StockPreOrder, keywords: []string{"pre-order", "preorder", "pre order", "coming soon", "available for order"}},
	{status: domain.StockOutOfStock, keywords: []string{
		"out of stock", "sold out", "unavailable", "not in stock", "not available", "backorder", "back-order", "temporarily out",
	}},
	{
		status: domain.StockLimited,
		keywords: []string{
			"limited stock", "limited quantity", "limited quantities", "limited availability", "limited supply",
			"few left", "low stock", "almost gone", "last one",
		},
		patterns: []*regexp.Regexp{regexp.MustCompile(`\bonly \d+ (left|remaining)\b`), regexp.MustCompile(`\b\d+ left\b`)},
	},
	{status: domain.StockInStock, keywords: []string{"in stock", "available", "ships", "add to cart", "add to basket", "buy now", "instock"}},
}

// MapStock maps free stock text to the canonical enum, UNKNOWN when no rule
// matches.
func MapStock(text string) domain.StockStatus {
	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if lower == "" {
		return domain.StockUnknown
	}
	for _, rule := range stockRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.status
			}
		}
		for _, p := range rule.patterns {
			if p.MatchString(lower) {
				return rule.status
			}
		}
	}
	return domain.StockUnknown
}
