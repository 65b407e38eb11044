package ledger

import (
	"context"
	"time"

	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for the durable stats counters.
type Repository interface {
	IncrementCounter(ctx context.Context, scope, scopeKey string, metric enums.MetricType, success bool) error
	GetCounter(ctx context.Context, scope, scopeKey string, metric enums.MetricType) (*models.StatsCounter, error)
	ListCounters(ctx context.Context, scope string) ([]models.StatsCounter, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stats repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// IncrementCounter bumps one counter row in a single upsert. The increments
// run inside the UPDATE itself, so concurrent writers serialize on the row
// and no update is lost.
func (r *repository) IncrementCounter(ctx context.Context, scope, scopeKey string, metric enums.MetricType, success bool) error {
	successDelta := int64(0)
	failedDelta := int64(0)
	if success {
		successDelta = 1
	} else {
		failedDelta = 1
	}

	now := time.Now().UTC()
	counter := models.StatsCounter{
		Scope:       scope,
		ScopeKey:    scopeKey,
		Metric:      metric,
		Success:     successDelta,
		Failed:      failedDelta,
		Total:       1,
		LastUpdated: now,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}, {Name: "scope_key"}, {Name: "metric"}},
		DoUpdates: clause.Assignments(map[string]any{
			"success":      gorm.Expr("stats_counters.success + ?", successDelta),
			"failed":       gorm.Expr("stats_counters.failed + ?", failedDelta),
			"total":        gorm.Expr("stats_counters.total + 1"),
			"last_updated": now,
		}),
	}).Create(&counter).Error
}

func (r *repository) GetCounter(ctx context.Context, scope, scopeKey string, metric enums.MetricType) (*models.StatsCounter, error) {
	var counter models.StatsCounter
	err := r.db.WithContext(ctx).
		Where("scope = ? AND scope_key = ? AND metric = ?", scope, scopeKey, metric).
		First(&counter).Error
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

func (r *repository) ListCounters(ctx context.Context, scope string) ([]models.StatsCounter, error) {
	var counters []models.StatsCounter
	if err := r.db.WithContext(ctx).
		Where("scope = ?", scope).
		Order("scope_key ASC, metric ASC").
		Find(&counters).Error; err != nil {
		return nil, err
	}
	return counters, nil
}
