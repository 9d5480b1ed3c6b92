package repository

import (
	"fmt"
	"time"

	"github.com/vshop/insights/internal/models"
	"gorm.io/gorm"
)

// InsightRequestRepositoryImpl implements InsightRequestRepository
type InsightRequestRepositoryImpl struct {
	db *gorm.DB
}

func NewInsightRequestRepository(db *gorm.DB) models.InsightRequestRepository {
	return &InsightRequestRepositoryImpl{db: db}
}

func (r *InsightRequestRepositoryImpl) Create(req *models.InsightRequest) error {
	if err := r.db.Create(req).Error; err != nil {
		return fmt.Errorf("failed to create insight request: %w", err)
	}
	return nil
}

func (r *InsightRequestRepositoryImpl) GetRecent(limit int) ([]models.InsightRequest, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var requests []models.InsightRequest
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

func (r *InsightRequestRepositoryImpl) CountByOutcome(from, to time.Time) ([]models.OutcomeCount, error) {
	var counts []models.OutcomeCount
	err := r.db.Model(&models.InsightRequest{}).
		Select("outcome, COUNT(*) AS count").
		Where("created_at BETWEEN ? AND ?", from, to).
		Group("outcome").
		Order("outcome").
		Scan(&counts).Error
	return counts, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	InsightRequests models.InsightRequestRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		InsightRequests: NewInsightRequestRepository(db),
	}
}
