package models

// ProductInsights is the validated model output. A value is either fully valid
// or not returned at all.
type ProductInsights struct {
	Summary        string   `json:"summary"`
	Pros           []string `json:"pros"`
	Cons           []string `json:"cons"`
	RecommendedFor []string `json:"recommendedFor,omitempty"`
}
