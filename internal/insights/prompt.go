package insights

import (
	"strings"

	"github.com/vshop/insights/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MaxDescriptionRunes bounds how much of the description reaches the prompt.
const MaxDescriptionRunes = 500

const promptHeader = "You are a product advisor. Generate insights in JSON format."

const promptFormat = `**JSON Format:**
{
  "summary": "2-4 sentences describing key characteristics",
  "pros": ["3-5 strengths as short phrases"],
  "cons": ["2-4 weaknesses as short phrases"],
  "recommendedFor": ["1-3 user types or use cases"]
}

Be objective and concise. Respond ONLY with valid JSON.`

var pricePrinter = message.NewPrinter(language.English)

// BuildPrompt renders input deterministically. Only populated attributes are
// listed, always in vocabulary order.
func BuildPrompt(input models.InsightsInput) string {
	var b strings.Builder

	b.WriteString(promptHeader)
	b.WriteString("\n\n**Product:**\n")
	b.WriteString("- Title: " + input.Title + "\n")
	b.WriteString("- Price: $" + FormatPrice(input.Price) + "\n")

	if input.Description != "" {
		b.WriteString("- Description: " + truncateRunes(input.Description, MaxDescriptionRunes) + "\n")
	}

	if specs := formatAttributes(input.Attributes); specs != "" {
		b.WriteString("- Specs:\n" + specs + "\n")
	}

	b.WriteString("\n")
	b.WriteString(promptFormat)
	return b.String()
}

// FormatPrice groups thousands and keeps up to three decimals: 1299.5 -> "1,299.5".
func FormatPrice(price float64) string {
	return pricePrinter.Sprint(number.Decimal(price, number.MaxFractionDigits(3)))
}

func formatAttributes(attrs map[models.AttributeKey]string) string {
	lines := make([]string, 0, len(models.AttributeKeys))
	for _, key := range models.AttributeKeys {
		if v := attrs[key]; v != "" {
			lines = append(lines, "  - "+key.Label()+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
