package insights

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vshop/insights/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(models.InsightsInput{
		Title:       "Samsung Galaxy S24",
		Price:       1299999,
		Description: "Flagship phone",
		Attributes: map[models.AttributeKey]string{
			models.AttributeScreen:  "6.2\"",
			models.AttributeBattery: "4000 mAh",
			models.AttributeRAM:     "8 GB",
		},
	})

	want := `You are a product advisor. Generate insights in JSON format.

**Product:**
- Title: Samsung Galaxy S24
- Price: $1,299,999
- Description: Flagship phone
- Specs:
  - Battery: 4000 mAh
  - RAM: 8 GB
  - Screen: 6.2"

**JSON Format:**
{
  "summary": "2-4 sentences describing key characteristics",
  "pros": ["3-5 strengths as short phrases"],
  "cons": ["2-4 weaknesses as short phrases"],
  "recommendedFor": ["1-3 user types or use cases"]
}

Be objective and concise. Respond ONLY with valid JSON.`

	assert.Equal(t, want, prompt)
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	prompt := BuildPrompt(models.InsightsInput{Title: "Cable", Price: 5})

	assert.NotContains(t, prompt, "Description:")
	assert.NotContains(t, prompt, "Specs:")
	assert.Contains(t, prompt, "- Price: $5\n")
}

func TestBuildPrompt_TruncatesDescription(t *testing.T) {
	description := strings.Repeat("ñ", 600)

	prompt := BuildPrompt(models.InsightsInput{Title: "t", Description: description})

	assert.Contains(t, prompt, "- Description: "+strings.Repeat("ñ", 500)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("ñ", 501))
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	input := models.InsightsInput{
		Title: "t",
		Attributes: map[models.AttributeKey]string{
			models.AttributeScreen:    "a",
			models.AttributeProcessor: "b",
			models.AttributeStorage:   "c",
			models.AttributeCamera:    "d",
		},
	}

	first := BuildPrompt(input)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildPrompt(input))
	}
	assert.Less(t, strings.Index(first, "Camera"), strings.Index(first, "Storage"))
	assert.Less(t, strings.Index(first, "Processor"), strings.Index(first, "Screen"))
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{price: 0, want: "0"},
		{price: 999, want: "999"},
		{price: 1000, want: "1,000"},
		{price: 1299.5, want: "1,299.5"},
		{price: 49.99, want: "49.99"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.price))
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "", truncateRunes("abc", 0))
	assert.Equal(t, "héé", truncateRunes("hééllo", 3))
}
