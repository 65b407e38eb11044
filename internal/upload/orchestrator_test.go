package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
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
)

type fakeMedia struct {
	items map[string]*models.MediaItem
}

func (f *fakeMedia) Download(ctx context.Context, input download.Input) (*models.MediaItem, error) {
	return nil, errors.New("not used")
}

func (f *fakeMedia) Get(ctx context.Context, id string) (*models.MediaItem, error) {
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "media item not found")
}

func (f *fakeMedia) ListByOwner(ctx context.Context, ownerUserID string) ([]models.MediaItem, error) {
	return nil, nil
}

func (f *fakeMedia) RegisterDerived(ctx context.Context, source *models.MediaItem, path string) (*models.MediaItem, error) {
	return nil, errors.New("not used")
}

type fakeAuth struct {
	mu    sync.Mutex
	calls map[enums.Platform]int
	fail  map[enums.Platform]bool
}

func (f *fakeAuth) Authenticate(ctx context.Context, platform enums.Platform) (platformauth.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[enums.Platform]int{}
	}
	f.calls[platform]++
	if f.fail[platform] {
		return platformauth.Credentials{}, errors.New("auth rejected")
	}
	return platformauth.Credentials{AccessToken: "token-" + string(platform)}, nil
}

type scriptedTransport struct {
	platform enums.Platform
	mu       sync.Mutex
	calls    int
	// failures is how many publish calls fail before one succeeds; -1 fails forever
	failures int
}

func (s *scriptedTransport) Platform() enums.Platform { return s.platform }

func (s *scriptedTransport) Fetch(ctx context.Context, req transport.FetchRequest) (transport.FetchResult, error) {
	return transport.FetchResult{}, errors.New("not a fetcher")
}

func (s *scriptedTransport) Publish(ctx context.Context, req transport.PublishRequest) (transport.PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures < 0 || s.calls <= s.failures {
		return transport.PublishResult{}, errors.New("platform unavailable")
	}
	return transport.PublishResult{RemoteID: "remote-" + string(s.platform)}, nil
}

type captureLedger struct {
	mu      sync.Mutex
	uploads []ledger.UploadRecord
}

func (c *captureLedger) RecordDownload(ctx context.Context, rec ledger.DownloadRecord) {}

func (c *captureLedger) RecordUpload(ctx context.Context, rec ledger.UploadRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, rec)
}

func (c *captureLedger) PlatformStats(ctx context.Context) ([]models.StatsCounter, error) {
	return nil, nil
}

func (c *captureLedger) UserStats(ctx context.Context, userID string) ([]models.StatsCounter, error) {
	return nil, nil
}

type capturePublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (c *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, event)
	return nil
}

type fixture struct {
	orch       Orchestrator
	selections *selection.Store
	auth       *fakeAuth
	ledger     *captureLedger
	publisher  *capturePublisher
	transports map[enums.Platform]*scriptedTransport
	sleeps     *int
}

func newFixture(t *testing.T, maxRetries int, transports map[enums.Platform]*scriptedTransport) *fixture {
	t.Helper()

	media := &fakeMedia{items: map[string]*models.MediaItem{
		"youtube_abc": {
			ID:             "youtube_abc",
			SourcePlatform: enums.PlatformYouTube,
			OwnerUserID:    "user-1",
			LocalPath:      "/tmp/youtube_abc.mp4",
			SizeBytes:      9,
		},
	}}
	selections := selection.NewStore()
	auth := &fakeAuth{fail: map[enums.Platform]bool{}}
	led := &captureLedger{}
	pub := &capturePublisher{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})

	factory := func(platform enums.Platform) (transport.Transport, error) {
		if tr, ok := transports[platform]; ok {
			return tr, nil
		}
		return nil, errors.New("no transport")
	}

	orch, err := NewOrchestrator(media, selections, factory, auth, led, pub, nil,
		config.UploadConfig{MaxRetries: maxRetries, RetryDelay: 5 * time.Second}, logg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	sleeps := 0
	orch.(*orchestrator).sleep = func(ctx context.Context, d time.Duration) error {
		if d != 5*time.Second {
			t.Errorf("retry delay = %s, want 5s", d)
		}
		sleeps++
		return nil
	}

	return &fixture{
		orch:       orch,
		selections: selections,
		auth:       auth,
		ledger:     led,
		publisher:  pub,
		transports: transports,
		sleeps:     &sleeps,
	}
}

func (f *fixture) selectPlatforms(t *testing.T, mediaID string, platforms ...enums.Platform) {
	t.Helper()
	if err := f.selections.Begin(mediaID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, platform := range platforms {
		if _, err := f.selections.Toggle(mediaID, platform); err != nil {
			t.Fatalf("toggle %s: %v", platform, err)
		}
	}
}

func TestUploadIndependentOutcomes(t *testing.T) {
	transports := map[enums.Platform]*scriptedTransport{
		enums.PlatformTikTok:      {platform: enums.PlatformTikTok},
		enums.PlatformDailymotion: {platform: enums.PlatformDailymotion, failures: -1},
	}
	f := newFixture(t, 3, transports)
	f.selectPlatforms(t, "youtube_abc", enums.PlatformTikTok, enums.PlatformDailymotion)

	result, err := f.orch.Upload(context.Background(), Input{MediaID: "youtube_abc", UserID: "user-1"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	byPlatform := map[enums.Platform]PlatformResult{}
	for _, res := range result.Results {
		byPlatform[res.Platform] = res
	}

	tik := byPlatform[enums.PlatformTikTok]
	if !tik.Success || tik.Attempts != 1 || tik.RemoteID != "remote-tiktok" {
		t.Errorf("tiktok result = %+v", tik)
	}

	dm := byPlatform[enums.PlatformDailymotion]
	if dm.Success {
		t.Error("dailymotion should have failed")
	}
	if dm.Attempts != 4 {
		t.Errorf("dailymotion attempts = %d, want 1+3 retries", dm.Attempts)
	}
	if dm.Error != "upload failed" {
		t.Errorf("error = %q, want the canonical phrase without attempt detail", dm.Error)
	}

	if result.AllSucceeded() {
		t.Error("round must not report full success")
	}
}

func TestUploadRetriesWithFreshAuthPerAttempt(t *testing.T) {
	transports := map[enums.Platform]*scriptedTransport{
		enums.PlatformFacebook: {platform: enums.PlatformFacebook, failures: 2},
	}
	f := newFixture(t, 3, transports)
	f.selectPlatforms(t, "youtube_abc", enums.PlatformFacebook)

	result, err := f.orch.Upload(context.Background(), Input{MediaID: "youtube_abc", UserID: "user-1"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	res := result.Results[0]
	if !res.Success || res.Attempts != 3 {
		t.Fatalf("result = %+v", res)
	}
	if f.auth.calls[enums.PlatformFacebook] != 3 {
		t.Errorf("auth calls = %d, want one per attempt", f.auth.calls[enums.PlatformFacebook])
	}
	if *f.sleeps != 2 {
		t.Errorf("sleeps = %d, want one per retry", *f.sleeps)
	}
}

func TestUploadRecordsOneLedgerEntryPerPlatform(t *testing.T) {
	transports := map[enums.Platform]*scriptedTransport{
		enums.PlatformTikTok:   {platform: enums.PlatformTikTok},
		enums.PlatformFacebook: {platform: enums.PlatformFacebook, failures: -1},
	}
	f := newFixture(t, 1, transports)
	f.selectPlatforms(t, "youtube_abc", enums.PlatformTikTok, enums.PlatformFacebook)

	if _, err := f.orch.Upload(context.Background(), Input{MediaID: "youtube_abc", UserID: "user-1"}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	if len(f.ledger.uploads) != 2 {
		t.Fatalf("ledger records = %d, want one per platform", len(f.ledger.uploads))
	}
	for _, rec := range f.ledger.uploads {
		if rec.MediaID != "youtube_abc" || rec.UserID != "user-1" {
			t.Errorf("record = %+v", rec)
		}
		// Raw attempt detail belongs to the ledger, not the API payload.
		if rec.Platform == enums.PlatformFacebook {
			if rec.Success || !strings.Contains(rec.Reason, "attempt 1") {
				t.Errorf("facebook record = %+v", rec)
			}
		}
	}
}

func TestUploadClosesSelectionEvenOnTotalFailure(t *testing.T) {
	transports := map[enums.Platform]*scriptedTransport{
		enums.PlatformTikTok: {platform: enums.PlatformTikTok, failures: -1},
	}
	f := newFixture(t, 0, transports)
	f.selectPlatforms(t, "youtube_abc", enums.PlatformTikTok)

	if _, err := f.orch.Upload(context.Background(), Input{MediaID: "youtube_abc", UserID: "user-1"}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	if f.selections.State("youtube_abc") != enums.SelectionStateNone {
		t.Error("selection session should be closed after the round")
	}
}

func TestUploadRejectsEmptySelection(t *testing.T) {
	f := newFixture(t, 0, map[enums.Platform]*scriptedTransport{})
	if err := f.selections.Begin("youtube_abc"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err := f.orch.Upload(context.Background(), Input{MediaID: "youtube_abc", UserID: "user-1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestUploadUnknownMediaIsNotFound(t *testing.T) {
	f := newFixture(t, 0, map[enums.Platform]*scriptedTransport{})
	_, err := f.orch.Upload(context.Background(), Input{MediaID: "missing", UserID: "user-1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUploadPublishesResultEvent(t *testing.T) {
	transports := map[enums.Platform]*scriptedTransport{
		enums.PlatformTikTok: {platform: enums.PlatformTikTok},
	}
	f := newFixture(t, 0, transports)
	f.selectPlatforms(t, "youtube_abc", enums.PlatformTikTok)

	if _, err := f.orch.Upload(context.Background(), Input{MediaID: "youtube_abc", UserID: "user-1"}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	if len(f.publisher.published) != 1 {
		t.Fatalf("events = %d, want 1", len(f.publisher.published))
	}
	event := f.publisher.published[0]
	if event.Type != enums.FrontendEventUploadResult || event.MediaID != "youtube_abc" {
		t.Errorf("event = %+v", event)
	}
}
