package insights

import (
	"encoding/json"
	"fmt"

	"github.com/vshop/insights/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

const insightsSchemaJSON = `{
  "type": "object",
  "required": ["summary", "pros", "cons"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "pros": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "cons": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "recommendedFor": {
      "type": "array",
      "maxItems": 3,
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

var insightsSchema = mustLoadSchema(insightsSchemaJSON)

func mustLoadSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid insights schema: %v", err))
	}
	return schema
}

// Validate returns the reasons candidate is not a usable insights document. A
// nil result means it is valid. candidate is an untyped JSON value as produced by
// json.Unmarshal into an interface{}. Unknown fields are allowed.
func Validate(candidate interface{}) []string {
	result, err := insightsSchema.Validate(gojsonschema.NewGoLoader(candidate))
	if err != nil {
		return []string{fmt.Sprintf("unreadable document: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return reasons
}

func IsValid(candidate interface{}) bool {
	return len(Validate(candidate)) == 0
}

// trustDocument validates an untyped document and converts it to insights.
func trustDocument(doc interface{}) (models.ProductInsights, []string) {
	if reasons := Validate(doc); len(reasons) > 0 {
		return models.ProductInsights{}, reasons
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return models.ProductInsights{}, []string{err.Error()}
	}
	var out models.ProductInsights
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.ProductInsights{}, []string{err.Error()}
	}
	return out, nil
}
