package models

type InsightsResponse struct {
	Insights  *ProductInsights `json:"insights"`
	AIEnabled bool             `json:"ai_enabled"`
}

type PromptResponse struct {
	Prompt     string            `json:"prompt"`
	Attributes map[string]string `json:"attributes"`
	Sufficient bool              `json:"sufficient"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// AdmissionCounts are rate limiter decisions since the recorder started.
type AdmissionCounts struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

type AdmissionStats struct {
	AdmissionCounts
	Routes map[string]AdmissionCounts `json:"routes"`
}

// StatsResponse is nil-safe per source: Admission is null without a recorder
// and Outcomes is empty without analytics storage.
type StatsResponse struct {
	Admission        *AdmissionStats `json:"admission"`
	Outcomes         []OutcomeCount  `json:"outcomes"`
	AnalyticsEnabled bool            `json:"analytics_enabled"`
	From             string          `json:"from"`
	To               string          `json:"to"`
}

type RecentRequestsResponse struct {
	Requests []InsightRequest `json:"requests"`
	Count    int              `json:"count"`
}
