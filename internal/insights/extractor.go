// Package insights turns catalog products into validated model-generated
// insights. Every entry point degrades to "no insights" instead of failing.
package insights

import (
	"github.com/vshop/insights/internal/models"
	"golang.org/x/text/unicode/norm"
)

// MinAttributes is the number of populated attributes below which callers
// should skip generation.
const MinAttributes = 2

// Extractor maps free-form attributes onto the fixed attribute vocabulary.
type Extractor struct {
	patterns []Pattern
}

// NewExtractor uses patterns in order. An empty table falls back to the defaults.
func NewExtractor(patterns []Pattern) *Extractor {
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	return &Extractor{patterns: patterns}
}

var defaultExtractor = NewExtractor(nil)

// ExtractAttributes runs the default table over attrs.
func ExtractAttributes(attrs []models.ProductAttribute) map[models.AttributeKey]string {
	return defaultExtractor.Extract(attrs)
}

// Extract walks attrs in order. Attributes with an empty value are skipped. The
// name is tried before the id, the first matching pattern decides the key, and a
// key keeps the first value assigned to it.
func (e *Extractor) Extract(attrs []models.ProductAttribute) map[models.AttributeKey]string {
	result := make(map[models.AttributeKey]string)

	for _, attr := range attrs {
		if attr.ValueName == "" {
			continue
		}

		name := norm.NFC.String(attr.Name)
		id := norm.NFC.String(attr.ID)

		for _, p := range e.patterns {
			if !p.Regexp.MatchString(name) && !p.Regexp.MatchString(id) {
				continue
			}
			if _, taken := result[p.Key]; !taken {
				result[p.Key] = attr.ValueName
			}
			break
		}
	}

	return result
}

// NewInput builds the generation input for product.
func (e *Extractor) NewInput(product models.Product) models.InsightsInput {
	return models.InsightsInput{
		Title:       product.Title,
		Price:       product.Price,
		Description: product.Description,
		Attributes:  e.Extract(product.Attributes),
	}
}

func NewInput(product models.Product) models.InsightsInput {
	return defaultExtractor.NewInput(product)
}

// HasSufficientAttributes reports whether at least MinAttributes keys carry a
// non-empty value.
func HasSufficientAttributes(attrs map[models.AttributeKey]string) bool {
	populated := 0
	for _, v := range attrs {
		if v != "" {
			populated++
		}
	}
	return populated >= MinAttributes
}
