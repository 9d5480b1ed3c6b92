package models

// GORM models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Insight request outcomes. Only the outcome is stored, never the insight itself.
const (
	OutcomeGenerated              = "generated"
	OutcomeUnavailable            = "unavailable"
	OutcomeInsufficientAttributes = "insufficient_attributes"
	OutcomeDisabled               = "disabled"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InsightRequest records one call to the insights endpoint for analytics.
type InsightRequest struct {
	BaseModel
	ClientHash     string `json:"client_hash" gorm:"index;not null"`
	ProductTitle   string `json:"product_title" gorm:"not null"`
	AttributeCount int    `json:"attribute_count" gorm:"default:0"`
	Outcome        string `json:"outcome" gorm:"not null;check:outcome IN ('generated','unavailable','insufficient_attributes','disabled')"`
	Provider       string `json:"provider"`
	ResponseTimeMs int    `json:"response_time_ms"`
	UserAgent      string `json:"user_agent"`
}

// OutcomeCount is an aggregate row over InsightRequest.
type OutcomeCount struct {
	Outcome string `json:"outcome"`
	Count   int64  `json:"count"`
}

// Database interfaces for repository pattern
type InsightRequestRepository interface {
	Create(req *InsightRequest) error
	GetRecent(limit int) ([]InsightRequest, error)
	CountByOutcome(from, to time.Time) ([]OutcomeCount, error)
}

func (InsightRequest) TableName() string { return "insight_requests" }

func (ir *InsightRequest) Validate() error {
	if ir.ClientHash == "" {
		return fmt.Errorf("client hash is required")
	}
	if ir.ProductTitle == "" {
		return fmt.Errorf("product title is required")
	}
	switch ir.Outcome {
	case OutcomeGenerated, OutcomeUnavailable, OutcomeInsufficientAttributes, OutcomeDisabled:
	default:
		return fmt.Errorf("invalid outcome: %s", ir.Outcome)
	}
	return nil
}

func (ir *InsightRequest) BeforeCreate(tx *gorm.DB) error {
	if title := []rune(ir.ProductTitle); len(title) > 255 {
		ir.ProductTitle = string(title[:255])
	}
	return ir.Validate()
}
