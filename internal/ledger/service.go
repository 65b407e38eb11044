package ledger

import (
	"context"
	"fmt"

	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

// Service records transfer outcomes and serves the aggregated counters.
// Record calls never fail the surrounding operation: a transfer that worked
// stays worked even when the ledger is down.
type Service interface {
	RecordDownload(ctx context.Context, rec DownloadRecord)
	RecordUpload(ctx context.Context, rec UploadRecord)
	PlatformStats(ctx context.Context) ([]models.StatsCounter, error)
	UserStats(ctx context.Context, userID string) ([]models.StatsCounter, error)
}

// DownloadRecord captures one finished download attempt.
type DownloadRecord struct {
	UserID    string
	Platform  enums.Platform
	MediaID   string
	SourceURL string
	SizeBytes int64
	Success   bool
	Reason    string
}

// UploadRecord captures one finished upload round for a single platform.
type UploadRecord struct {
	UserID   string
	Platform enums.Platform
	MediaID  string
	RemoteID string
	Attempts int
	Success  bool
	Reason   string
}

type service struct {
	repo  Repository
	audit *AuditWriter
	logg  *logger.Logger
}

// NewService wires the ledger service with its repository and audit sink.
func NewService(repo Repository, audit *AuditWriter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, audit: audit, logg: logg}, nil
}

func (s *service) RecordDownload(ctx context.Context, rec DownloadRecord) {
	s.increment(ctx, rec.UserID, rec.Platform, enums.MetricTypeDownloads, rec.Success)
	s.audit.Record("download", map[string]any{
		"user_id":    rec.UserID,
		"platform":   rec.Platform,
		"media_id":   rec.MediaID,
		"source_url": rec.SourceURL,
		"size_bytes": rec.SizeBytes,
		"success":    rec.Success,
		"reason":     rec.Reason,
	})
}

func (s *service) RecordUpload(ctx context.Context, rec UploadRecord) {
	s.increment(ctx, rec.UserID, rec.Platform, enums.MetricTypeUploads, rec.Success)
	s.audit.Record("upload", map[string]any{
		"user_id":   rec.UserID,
		"platform":  rec.Platform,
		"media_id":  rec.MediaID,
		"remote_id": rec.RemoteID,
		"attempts":  rec.Attempts,
		"success":   rec.Success,
		"reason":    rec.Reason,
	})
}

// increment bumps the platform-scoped and user-scoped counters. Errors are
// logged and swallowed.
func (s *service) increment(ctx context.Context, userID string, platform enums.Platform, metric enums.MetricType, success bool) {
	ctx = s.logg.WithPlatform(ctx, string(platform))

	if platform.IsValid() {
		if err := s.repo.IncrementCounter(ctx, models.CounterScopePlatform, string(platform), metric, success); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "ledger_error", err.Error()), "platform counter write failed")
		}
	}
	if userID != "" {
		if err := s.repo.IncrementCounter(ctx, models.CounterScopeUser, userID, metric, success); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "ledger_error", err.Error()), "user counter write failed")
		}
	}
}

func (s *service) PlatformStats(ctx context.Context) ([]models.StatsCounter, error) {
	return s.repo.ListCounters(ctx, models.CounterScopePlatform)
}

func (s *service) UserStats(ctx context.Context, userID string) ([]models.StatsCounter, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	counters := make([]models.StatsCounter, 0, 2)
	for _, metric := range []enums.MetricType{enums.MetricTypeDownloads, enums.MetricTypeUploads} {
		counter, err := s.repo.GetCounter(ctx, models.CounterScopeUser, userID, metric)
		if err != nil {
			continue
		}
		counters = append(counters, *counter)
	}
	return counters, nil
}
