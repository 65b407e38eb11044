package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vidrelay/vidrelay-backend/internal/download"
	"github.com/vidrelay/vidrelay-backend/internal/events"
	"github.com/vidrelay/vidrelay-backend/internal/ledger"
	"github.com/vidrelay/vidrelay-backend/internal/platformauth"
	"github.com/vidrelay/vidrelay-backend/internal/selection"
	"github.com/vidrelay/vidrelay-backend/internal/transport"
	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
	"github.com/vidrelay/vidrelay-backend/pkg/metrics"
	"go.uber.org/multierr"
)

// Input names the media and metadata for one upload round. The destination
// set comes from the selection store, frozen when the round starts.
type Input struct {
	MediaID  string
	UserID   string
	Metadata transport.Metadata
}

// PlatformResult is the outcome for a single destination.
type PlatformResult struct {
	Platform  enums.Platform `json:"platform"`
	Success   bool           `json:"success"`
	Attempts  int            `json:"attempts"`
	RemoteID  string         `json:"remote_id,omitempty"`
	RemoteURL string         `json:"remote_url,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Result aggregates one upload round. A round "succeeds" as a whole only when
// every destination did; individual failures never abort the others.
type Result struct {
	MediaID string           `json:"media_id"`
	Results []PlatformResult `json:"results"`
}

// AllSucceeded reports whether every destination accepted the media.
func (r *Result) AllSucceeded() bool {
	for _, res := range r.Results {
		if !res.Success {
			return false
		}
	}
	return len(r.Results) > 0
}

// Orchestrator runs upload rounds against the selected destinations.
type Orchestrator interface {
	Upload(ctx context.Context, input Input) (*Result, error)
}

type orchestrator struct {
	media      download.Service
	selections *selection.Store
	transports download.TransportFactory
	auth       platformauth.Authenticator
	ledger     ledger.Service
	events     events.Publisher
	metrics    *metrics.PipelineMetrics
	cfg        config.UploadConfig
	logg       *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the upload orchestrator.
func NewOrchestrator(
	media download.Service,
	selections *selection.Store,
	transports download.TransportFactory,
	auth platformauth.Authenticator,
	ledgerSvc ledger.Service,
	publisher events.Publisher,
	pipelineMetrics *metrics.PipelineMetrics,
	cfg config.UploadConfig,
	logg *logger.Logger,
) (Orchestrator, error) {
	if media == nil {
		return nil, fmt.Errorf("media service required")
	}
	if selections == nil {
		return nil, fmt.Errorf("selection store required")
	}
	if transports == nil {
		return nil, fmt.Errorf("transport factory required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
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
	return &orchestrator{
		media:      media,
		selections: selections,
		transports: transports,
		auth:       auth,
		ledger:     ledgerSvc,
		events:     publisher,
		metrics:    pipelineMetrics,
		cfg:        cfg,
		logg:       logg,
		sleep:      sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Upload freezes the selection, pushes to every destination independently and
// closes the session when the round is done. The session closes no matter how
// the destinations fared.
func (o *orchestrator) Upload(ctx context.Context, input Input) (*Result, error) {
	item, err := o.media.Get(ctx, input.MediaID)
	if err != nil {
		return nil, err
	}

	platforms, err := o.selections.BeginUpload(input.MediaID)
	if err != nil {
		return nil, err
	}
	defer o.selections.Close(input.MediaID)

	ctx = o.logg.WithMediaID(o.logg.WithUserID(ctx, input.UserID), input.MediaID)

	results := make([]PlatformResult, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(i int, platform enums.Platform) {
			defer wg.Done()
			results[i] = o.uploadOne(ctx, input, item, platform)
		}(i, platform)
	}
	wg.Wait()

	result := &Result{MediaID: input.MediaID, Results: results}
	o.publishResult(ctx, input.UserID, result)
	return result, nil
}

// uploadOne runs the full retry loop for one destination: one initial attempt
// plus MaxRetries, a fixed delay between attempts, and a fresh authentication
// pass before each attempt.
func (o *orchestrator) uploadOne(ctx context.Context, input Input, item *models.MediaItem, platform enums.Platform) PlatformResult {
	ctx = o.logg.WithPlatform(ctx, string(platform))
	maxAttempts := 1 + o.cfg.MaxRetries

	var attemptErrs error
	result := PlatformResult{Platform: platform}

	started := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt
		if attempt > 1 {
			o.metrics.IncUploadRetry(string(platform))
			if err := o.sleep(ctx, o.cfg.RetryDelay); err != nil {
				attemptErrs = multierr.Append(attemptErrs, err)
				break
			}
		}

		remoteID, remoteURL, err := o.attempt(ctx, input, item, platform)
		if err == nil {
			result.Success = true
			result.RemoteID = remoteID
			result.RemoteURL = remoteURL
			break
		}
		attemptErrs = multierr.Append(attemptErrs, fmt.Errorf("attempt %d: %w", attempt, err))
		o.logg.Warn(o.logg.WithField(ctx, "attempt", attempt), "upload attempt failed")
	}
	o.metrics.ObserveUpload(string(platform), time.Since(started), result.Success)

	// The response carries the canonical phrase; the folded attempt errors
	// stay in the ledger record.
	var failureDetail string
	if !result.Success && attemptErrs != nil {
		failureDetail = attemptErrs.Error()
		result.Error = pkgerrors.MetadataFor(pkgerrors.CodeUploadFailed).PublicMessage
	}

	o.ledger.RecordUpload(ctx, ledger.UploadRecord{
		UserID:   input.UserID,
		Platform: platform,
		MediaID:  input.MediaID,
		RemoteID: result.RemoteID,
		Attempts: result.Attempts,
		Success:  result.Success,
		Reason:   failureDetail,
	})
	return result
}

func (o *orchestrator) attempt(ctx context.Context, input Input, item *models.MediaItem, platform enums.Platform) (string, string, error) {
	creds, err := o.auth.Authenticate(ctx, platform)
	if err != nil {
		return "", "", fmt.Errorf("authenticating: %w", err)
	}

	tr, err := o.transports(platform)
	if err != nil {
		return "", "", err
	}

	attemptCtx := ctx
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	published, err := tr.Publish(attemptCtx, transport.PublishRequest{
		Path:        item.LocalPath,
		Metadata:    input.Metadata,
		Credentials: creds,
	})
	if err != nil {
		return "", "", err
	}
	return published.RemoteID, published.RemoteURL, nil
}

func (o *orchestrator) publishResult(ctx context.Context, userID string, result *Result) {
	payload := map[string]any{
		"results":       result.Results,
		"all_succeeded": result.AllSucceeded(),
	}
	err := o.events.Publish(ctx, events.Event{
		Type:    enums.FrontendEventUploadResult,
		UserID:  userID,
		MediaID: result.MediaID,
		Payload: payload,
	})
	if err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "publish_error", err.Error()), "upload result event dropped")
	}
}
