// Package normalize turns raw per-site field values (price strings,
// measurement strings, brand labels, availability text) into canonical
// typed values. Every function is total: malformed or missing input
// yields an empty or default value, never an error. Error signaling is
// reserved for the required-field validation in the process package.
package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/VivekMangukiya11/donizo-material-scraper/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	priceCharsRE = regexp.MustCompile(`[^\d.,]`)
	numericRE    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	brandLabelRE = regexp.MustCompile(`(?i)^(marque|brand):\s*`)
)

// DefaultCurrency is used when the source supplied no currency hint.
const DefaultCurrency = "EUR"

// DefaultUnit is used when the configuration supplied no measurement unit.
const DefaultUnit = "cm"

// Price strips currency symbols and resolves the decimal separator,
// returning a price string containing only digits and at most one dot,
// plus the currency passed through. When both "," and "." appear, the
// rightmost one is the decimal separator; a lone "," is a decimal
// separator only when at most two digits follow it. Unparseable input
// yields an empty price with the currency preserved.
func Price(raw, currency string) (string, string) {
	if currency == "" {
		currency = DefaultCurrency
	}

	clean := priceCharsRE.ReplaceAllString(raw, "")
	if clean == "" {
		return "", currency
	}

	hasComma := strings.Contains(clean, ",")
	hasDot := strings.Contains(clean, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			// 1.234,56
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.ReplaceAll(clean, ",", ".")
		} else {
			// 1,234.56
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case hasComma:
		parts := strings.Split(clean, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			clean = parts[0] + "." + parts[1]
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	}

	if _, err := decimal.NewFromString(clean); err != nil {
		return "", currency
	}
	return clean, currency
}

// Measurement extracts the first numeric substring of each non-empty
// field and drops fields with no numeric content. When any field
// survives, a single "unit" field is added; otherwise the result is an
// empty map, which is not an error.
func Measurement(raw map[string]string, unit string) map[string]string {
	out := make(map[string]string)
	for key, value := range raw {
		if value == "" {
			continue
		}
		if match := numericRE.FindString(value); match != "" {
			out[key] = match
		}
	}
	if len(out) == 0 {
		return out
	}
	if unit == "" {
		unit = DefaultUnit
	}
	out["unit"] = unit
	return out
}

// Brand strips a leading "marque:"/"brand:" label, trims whitespace and
// title-cases the remainder. Empty input stays empty; collapsing
// ""/"N/A" to "Unknown" is the processor's job, not this function's.
func Brand(raw string) string {
	brand := brandLabelRE.ReplaceAllString(raw, "")
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return ""
	}
	return cases.Title(language.Und).String(brand)
}

// ValidURL reports whether raw parses to a URL with both a scheme and a
// host. Relative paths and malformed strings are invalid.
func ValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}

// availabilityIndicators are checked in priority order; the first phrase
// found in the listing text wins.
var availabilityIndicators = []struct {
	status  models.Availability
	phrases []string
}{
	{models.AvailabilityInStock, []string{"en stock", "disponible", "available", "in stock"}},
	{models.AvailabilityOutOfStock, []string{"rupture", "indisponible", "out of stock", "épuisé"}},
	{models.AvailabilityLimited, []string{"limité", "limited", "dernières pièces"}},
}

// Availability scans the case-folded product name and description for
// stock indicator phrases. This is best-effort text classification of
// listing copy, not inventory truth; no match yields "unknown".
func Availability(name, description string) models.Availability {
	text := strings.ToLower(name + " " + description)
	for _, group := range availabilityIndicators {
		for _, phrase := range group.phrases {
			if strings.Contains(text, phrase) {
				return group.status
			}
		}
	}
	return models.AvailabilityUnknown
}
