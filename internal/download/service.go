package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vidrelay/vidrelay-backend/internal/events"
	"github.com/vidrelay/vidrelay-backend/internal/ledger"
	"github.com/vidrelay/vidrelay-backend/internal/resolver"
	"github.com/vidrelay/vidrelay-backend/internal/transport"
	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
	"github.com/vidrelay/vidrelay-backend/pkg/metrics"
	"gorm.io/gorm"
)

// TransportFactory resolves the adapter for a platform. Injected so tests can
// swap in fakes without touching network code.
type TransportFactory func(platform enums.Platform) (transport.Transport, error)

// Input describes one download request.
type Input struct {
	URL     string
	Quality enums.Quality
	UserID  string
}

// Service validates a media URL, pulls the file through the platform
// transport and records the outcome.
type Service interface {
	Download(ctx context.Context, input Input) (*models.MediaItem, error)
	Get(ctx context.Context, id string) (*models.MediaItem, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]models.MediaItem, error)
	RegisterDerived(ctx context.Context, source *models.MediaItem, path string) (*models.MediaItem, error)
}

type service struct {
	repo       Repository
	transports TransportFactory
	ledger     ledger.Service
	events     events.Publisher
	metrics    *metrics.PipelineMetrics
	cfg        config.DownloadConfig
	logg       *logger.Logger
}

// NewService wires the download service.
func NewService(
	repo Repository,
	transports TransportFactory,
	ledgerSvc ledger.Service,
	publisher events.Publisher,
	pipelineMetrics *metrics.PipelineMetrics,
	cfg config.DownloadConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("media repository required")
	}
	if transports == nil {
		return nil, fmt.Errorf("transport factory required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		transports: transports,
		ledger:     ledgerSvc,
		events:     publisher,
		metrics:    pipelineMetrics,
		cfg:        cfg,
		logg:       logg,
	}, nil
}

// Download validates the request, pulls the file and records the outcome.
// Every attempt produces exactly one ledger record, including attempts
// rejected before the transport runs; the platform field may be empty when
// the URL never resolved.
func (s *service) Download(ctx context.Context, input Input) (*models.MediaItem, error) {
	platform, quality, err := validateInput(input)

	var item *models.MediaItem
	if err == nil {
		ctx = s.logg.WithPlatform(s.logg.WithUserID(ctx, input.UserID), string(platform))
		item, err = s.fetch(ctx, input, platform, quality)
	}

	record := ledger.DownloadRecord{
		UserID:    input.UserID,
		Platform:  platform,
		SourceURL: input.URL,
		Success:   err == nil,
	}
	if item != nil {
		record.MediaID = item.ID
		record.SizeBytes = item.SizeBytes
	}
	if err != nil {
		record.Reason = err.Error()
	}
	s.ledger.RecordDownload(ctx, record)

	if err != nil {
		s.logg.Error(ctx, "download failed", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithMediaID(ctx, item.ID), "download complete")
	s.publishEditOptions(ctx, input.UserID, item)
	return item, nil
}

func validateInput(input Input) (enums.Platform, enums.Quality, error) {
	platform, err := resolver.ValidateURL(input.URL)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	quality := input.Quality
	if quality == "" {
		quality = enums.QualityBest
	}
	if !quality.IsValid() {
		return platform, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid quality")
	}
	if input.UserID == "" {
		return platform, quality, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return platform, quality, nil
}

func (s *service) fetch(ctx context.Context, input Input, platform enums.Platform, quality enums.Quality) (*models.MediaItem, error) {
	tr, err := s.transports(platform)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transport unavailable")
	}

	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	started := time.Now()
	result, err := tr.Fetch(ctx, transport.FetchRequest{
		URL:      input.URL,
		Quality:  quality,
		DestDir:  s.cfg.Dir,
		MaxBytes: s.cfg.MaxFileBytes,
	})
	s.metrics.ObserveDownload(string(platform), time.Since(started), err == nil)
	if err != nil {
		if errors.Is(err, transport.ErrFileTooLarge) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDownloadFailed, err, "media exceeds maximum file size")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDownloadFailed, err, "fetch failed")
	}

	// An invalid file stays on disk for operator inspection. Deleting it
	// here would hide the root cause of the failed transfer.
	if err := verifyFile(result.Path, result.SizeBytes, s.cfg.MaxFileBytes); err != nil {
		return nil, err
	}

	item := &models.MediaItem{
		ID:             mediaIDFromPath(result.Path),
		SourceURL:      input.URL,
		SourcePlatform: platform,
		OwnerUserID:    input.UserID,
		LocalPath:      result.Path,
		SizeBytes:      result.SizeBytes,
		Quality:        quality,
		DownloadedAt:   time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting media item")
	}
	return item, nil
}

// verifyFile re-checks the landed file: it must exist, be readable, be
// non-empty and sit under the size cap. A zero-byte file counts as a failed
// download even when the transport reported success.
func verifyFile(path string, reportedSize, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDownloadFailed, err, "downloaded file missing")
	}
	if info.Size() == 0 || reportedSize == 0 {
		return pkgerrors.New(pkgerrors.CodeDownloadFailed, "downloaded file is empty")
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return pkgerrors.New(pkgerrors.CodeDownloadFailed, "downloaded file exceeds maximum size")
	}
	f, err := os.Open(path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDownloadFailed, err, "downloaded file unreadable")
	}
	_ = f.Close()
	return nil
}

func (s *service) publishEditOptions(ctx context.Context, userID string, item *models.MediaItem) {
	actions := []enums.EditAction{
		enums.EditActionTrim,
		enums.EditActionCaption,
		enums.EditActionBlurFace,
		enums.EditActionBlurSensitive,
		enums.EditActionSubtitle,
		enums.EditActionEnhance,
	}
	err := s.events.Publish(ctx, events.Event{
		Type:    enums.FrontendEventEditOptions,
		UserID:  userID,
		MediaID: item.ID,
		Payload: map[string]any{
			"actions":    actions,
			"local_path": item.LocalPath,
			"size_bytes": item.SizeBytes,
		},
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "publish_error", err.Error()), "edit options event dropped")
	}
}

func (s *service) Get(ctx context.Context, id string) (*models.MediaItem, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media id is required")
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "media item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading media item")
	}
	return item, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerUserID string) ([]models.MediaItem, error) {
	if ownerUserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByOwner(ctx, ownerUserID)
}

// RegisterDerived records an edited file as its own media item so it can be
// selected and uploaded like a direct download. The new ID comes from the
// derived filename.
func (s *service) RegisterDerived(ctx context.Context, source *models.MediaItem, path string) (*models.MediaItem, error) {
	if source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source media item is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derived file missing")
	}

	sourceID := source.ID
	item := &models.MediaItem{
		ID:             mediaIDFromPath(path),
		SourceURL:      source.SourceURL,
		SourcePlatform: source.SourcePlatform,
		OwnerUserID:    source.OwnerUserID,
		LocalPath:      path,
		SizeBytes:      info.Size(),
		Quality:        source.Quality,
		DerivedFrom:    &sourceID,
		DownloadedAt:   time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting derived media item")
	}
	return item, nil
}

// mediaIDFromPath derives the stable media ID from the deterministic
// filename, e.g. downloads/youtube_abc.mp4 -> youtube_abc.
func mediaIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
