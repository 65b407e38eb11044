package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

type counterKey struct {
	scope    string
	scopeKey string
	metric   enums.MetricType
}

type fakeRepository struct {
	incrementFn func(ctx context.Context, scope, scopeKey string, metric enums.MetricType, success bool) error
	increments  []counterKey
	counters    map[counterKey]*models.StatsCounter
}

func (f *fakeRepository) IncrementCounter(ctx context.Context, scope, scopeKey string, metric enums.MetricType, success bool) error {
	f.increments = append(f.increments, counterKey{scope, scopeKey, metric})
	if f.incrementFn != nil {
		return f.incrementFn(ctx, scope, scopeKey, metric, success)
	}
	return nil
}

func (f *fakeRepository) GetCounter(ctx context.Context, scope, scopeKey string, metric enums.MetricType) (*models.StatsCounter, error) {
	if counter, ok := f.counters[counterKey{scope, scopeKey, metric}]; ok {
		return counter, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeRepository) ListCounters(ctx context.Context, scope string) ([]models.StatsCounter, error) {
	var out []models.StatsCounter
	for key, counter := range f.counters {
		if key.scope == scope {
			out = append(out, *counter)
		}
	}
	return out, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestService(t *testing.T, repo Repository, auditBuf *bytes.Buffer) Service {
	t.Helper()
	var audit *AuditWriter
	if auditBuf != nil {
		audit = newAuditWriterTo(auditBuf, nopCloser{})
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(repo, audit, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRecordDownloadIncrementsBothScopes(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo, nil)

	svc.RecordDownload(context.Background(), DownloadRecord{
		UserID:   "user-1",
		Platform: enums.PlatformYouTube,
		MediaID:  "youtube_abc",
		Success:  true,
	})

	if len(repo.increments) != 2 {
		t.Fatalf("expected 2 increments, got %d", len(repo.increments))
	}
	want := []counterKey{
		{models.CounterScopePlatform, "youtube", enums.MetricTypeDownloads},
		{models.CounterScopeUser, "user-1", enums.MetricTypeDownloads},
	}
	for i, key := range want {
		if repo.increments[i] != key {
			t.Errorf("increment %d = %+v, want %+v", i, repo.increments[i], key)
		}
	}
}

func TestRecordUploadSwallowsRepositoryFailure(t *testing.T) {
	repo := &fakeRepository{
		incrementFn: func(context.Context, string, string, enums.MetricType, bool) error {
			return errors.New("db down")
		},
	}
	svc := newTestService(t, repo, nil)

	// Must not panic or surface the error.
	svc.RecordUpload(context.Background(), UploadRecord{
		UserID:   "user-1",
		Platform: enums.PlatformTikTok,
		MediaID:  "tiktok_1",
		Attempts: 4,
		Success:  false,
		Reason:   "token expired",
	})

	if len(repo.increments) != 2 {
		t.Fatalf("expected both scopes attempted, got %d", len(repo.increments))
	}
}

func TestRecordUploadWritesAuditLine(t *testing.T) {
	var buf bytes.Buffer
	repo := &fakeRepository{}
	svc := newTestService(t, repo, &buf)

	svc.RecordUpload(context.Background(), UploadRecord{
		UserID:   "user-7",
		Platform: enums.PlatformDailymotion,
		MediaID:  "dailymotion_x8",
		RemoteID: "x8new",
		Attempts: 1,
		Success:  true,
	})

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected an audit line")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("audit line not json: %v", err)
	}
	if entry["event"] != "upload" {
		t.Errorf("event = %v", entry["event"])
	}
	if entry["remote_id"] != "x8new" {
		t.Errorf("remote_id = %v", entry["remote_id"])
	}
	if entry["success"] != true {
		t.Errorf("success = %v", entry["success"])
	}
}

func TestRecordDownloadWithNilAuditWriter(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo, nil)

	svc.RecordDownload(context.Background(), DownloadRecord{
		UserID:   "user-1",
		Platform: enums.PlatformFacebook,
		Success:  false,
		Reason:   "file too large",
	})
}

func TestUserStatsReturnsExistingCounters(t *testing.T) {
	repo := &fakeRepository{
		counters: map[counterKey]*models.StatsCounter{
			{models.CounterScopeUser, "user-1", enums.MetricTypeDownloads}: {
				Scope: models.CounterScopeUser, ScopeKey: "user-1",
				Metric: enums.MetricTypeDownloads, Success: 3, Failed: 1, Total: 4,
			},
		},
	}
	svc := newTestService(t, repo, nil)

	counters, err := svc.UserStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if len(counters) != 1 {
		t.Fatalf("expected 1 counter, got %d", len(counters))
	}
	if counters[0].Total != 4 || counters[0].Success != 3 {
		t.Fatalf("counter = %+v", counters[0])
	}
}

func TestUserStatsRequiresUserID(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil)
	if _, err := svc.UserStats(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
