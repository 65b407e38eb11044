package controllers

import (
	"net/http"
	"time"

	"github.com/vidrelay/vidrelay-backend/api/middleware"
	"github.com/vidrelay/vidrelay-backend/api/responses"
	"github.com/vidrelay/vidrelay-backend/internal/ledger"
	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

type statsCounterResponse struct {
	Scope       string    `json:"scope"`
	ScopeKey    string    `json:"scope_key"`
	Metric      string    `json:"metric"`
	Success     int64     `json:"success"`
	Failed      int64     `json:"failed"`
	Total       int64     `json:"total"`
	LastUpdated time.Time `json:"last_updated"`
}

func toStatsResponse(counters []models.StatsCounter) []statsCounterResponse {
	out := make([]statsCounterResponse, 0, len(counters))
	for _, c := range counters {
		out = append(out, statsCounterResponse{
			Scope:       c.Scope,
			ScopeKey:    c.ScopeKey,
			Metric:      string(c.Metric),
			Success:     c.Success,
			Failed:      c.Failed,
			Total:       c.Total,
			LastUpdated: c.LastUpdated,
		})
	}
	return out
}

// StatsPlatforms reports aggregate transfer counters per platform.
func StatsPlatforms(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := svc.PlatformStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStatsResponse(counters))
	}
}

// StatsMe reports the caller's own transfer counters.
func StatsMe(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		counters, err := svc.UserStats(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStatsResponse(counters))
	}
}
