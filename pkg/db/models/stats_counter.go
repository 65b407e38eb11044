package models

import (
	"time"

	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

// Counter scopes: one counter family per platform, one per user.
const (
	CounterScopePlatform = "platform"
	CounterScopeUser     = "user"
)

// StatsCounter is a durable success/failure aggregate keyed by
// (scope, scope_key, metric). Total always equals Success+Failed after a
// committed update; increments happen in a single UPDATE so concurrent
// writers cannot lose updates.
type StatsCounter struct {
	Scope       string           `gorm:"column:scope;primaryKey"`
	ScopeKey    string           `gorm:"column:scope_key;primaryKey"`
	Metric      enums.MetricType `gorm:"column:metric;primaryKey"`
	Success     int64            `gorm:"column:success;not null;default:0"`
	Failed      int64            `gorm:"column:failed;not null;default:0"`
	Total       int64            `gorm:"column:total;not null;default:0"`
	LastUpdated time.Time        `gorm:"column:last_updated;not null"`
}

func (StatsCounter) TableName() string { return "stats_counters" }
