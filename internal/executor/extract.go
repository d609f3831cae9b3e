package executor

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

var (
	errEmptyPrice = errors.New("empty price text")
	// A separator groups thousands only when exactly three digits follow
	// it, so "19.99 2 left" stops after the first number.
	priceNumber = regexp.MustCompile(`\d{1,3}(?:[ \x{00A0}\x{202F}.,']\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`)
)

// Extraction holds the fields read from a product page.
type Extraction struct {
	ProductName string
	PriceText   string
	Price       float64
	StockText   string
}

// Extract reads product fields from body using the command's selectors.
// Missing or unparseable prices and seller mismatches are structural.
func Extract(body []byte, selectors domain.Selectors, sellerName string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, newScrapeError(domain.FailureStructural, CodeParseError, 0, "parse html", err)
	}

	out := &Extraction{
		ProductName: selectText(doc, selectors.ProductName),
		StockText:   selectText(doc, selectors.Stock),
	}

	if selectors.SellerOnPage != "" {
		onPage := selectText(doc, selectors.SellerOnPage)
		if !strings.Contains(strings.ToLower(onPage), strings.ToLower(sellerName)) {
			return nil, newScrapeError(domain.FailureStructural, CodeSellerMismatch, 0,
				fmt.Sprintf("seller on page %q does not match %q", onPage, sellerName), nil)
		}
	}

	priceSel := doc.Find(selectors.Price).First()
	if priceSel.Length() == 0 {
		return nil, newScrapeError(domain.FailureStructural, CodePriceNotFound, 0,
			fmt.Sprintf("no element matches %q", selectors.Price), nil)
	}

	out.PriceText = strings.TrimSpace(priceSel.Text())
	if out.PriceText == "" {
		if content, ok := priceSel.Attr("content"); ok {
			out.PriceText = strings.TrimSpace(content)
		}
	}

	price, err := ParsePrice(out.PriceText)
	if err != nil {
		return nil, newScrapeError(domain.FailureStructural, CodePriceUnparseable, 0,
			fmt.Sprintf("price text %q", out.PriceText), err)
	}
	out.Price = price
	return out, nil
}

func selectText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
}

// ParsePrice reads a price from display text such as "$1,299.99",
// "1.299,99 €" or "EUR 12". The last separator followed by one or two
// digits is taken as the decimal point.
func ParsePrice(text string) (float64, error) {
	match := priceNumber.FindString(text)
	if match == "" {
		return 0, errEmptyPrice
	}

	digits := strings.Map(func(r rune) rune {
		if r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, match)

	decimal := -1
	if i := strings.LastIndexAny(digits, ".,"); i >= 0 {
		if frac := len(digits) - i - 1; frac == 1 || frac == 2 {
			decimal = i
		}
	}

	var b strings.Builder
	for i, r := range digits {
		switch {
		case i == decimal:
			b.WriteByte('.')
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}

	price, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", text, err)
	}
	return price, nil
}
