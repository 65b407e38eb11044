package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidrelay/vidrelay-backend/api/middleware"
	"github.com/vidrelay/vidrelay-backend/internal/download"
	"github.com/vidrelay/vidrelay-backend/internal/ledger"
	"github.com/vidrelay/vidrelay-backend/internal/selection"
	"github.com/vidrelay/vidrelay-backend/internal/upload"
	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
)

type fakeMediaService struct {
	items      map[string]*models.MediaItem
	downloaded *download.Input
	downloadFn func(download.Input) (*models.MediaItem, error)
}

func newFakeMediaService(items ...*models.MediaItem) *fakeMediaService {
	svc := &fakeMediaService{items: map[string]*models.MediaItem{}}
	for _, item := range items {
		svc.items[item.ID] = item
	}
	return svc
}

func (f *fakeMediaService) Download(ctx context.Context, input download.Input) (*models.MediaItem, error) {
	f.downloaded = &input
	if f.downloadFn != nil {
		return f.downloadFn(input)
	}
	item := &models.MediaItem{
		ID:             "youtube_abc12345678",
		SourceURL:      input.URL,
		SourcePlatform: enums.PlatformYouTube,
		OwnerUserID:    input.UserID,
		LocalPath:      "downloads/youtube_abc12345678.mp4",
		SizeBytes:      2048,
		Quality:        input.Quality,
		DownloadedAt:   time.Now().UTC(),
	}
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeMediaService) Get(ctx context.Context, id string) (*models.MediaItem, error) {
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "media item not found")
}

func (f *fakeMediaService) ListByOwner(ctx context.Context, ownerUserID string) ([]models.MediaItem, error) {
	var out []models.MediaItem
	for _, item := range f.items {
		if item.OwnerUserID == ownerUserID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeMediaService) RegisterDerived(ctx context.Context, source *models.MediaItem, path string) (*models.MediaItem, error) {
	sourceID := source.ID
	item := &models.MediaItem{
		ID:          strings.TrimSuffix(path, ".mp4"),
		OwnerUserID: source.OwnerUserID,
		LocalPath:   path,
		DerivedFrom: &sourceID,
	}
	f.items[item.ID] = item
	return item, nil
}

type fakeOrchestrator struct {
	input  *upload.Input
	result *upload.Result
	err    error
}

func (f *fakeOrchestrator) Upload(ctx context.Context, input upload.Input) (*upload.Result, error) {
	f.input = &input
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func authedRequest(method, target, body, userID string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}

func withRouteParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func ownedItem(id, userID string) *models.MediaItem {
	return &models.MediaItem{
		ID:             id,
		SourceURL:      "https://youtube.com/watch?v=abc12345678",
		SourcePlatform: enums.PlatformYouTube,
		OwnerUserID:    userID,
		LocalPath:      "downloads/" + id + ".mp4",
		SizeBytes:      2048,
		Quality:        enums.QualityBest,
		DownloadedAt:   time.Now().UTC(),
	}
}

func TestTransferCreate(t *testing.T) {
	svc := newFakeMediaService()
	handler := TransferCreate(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/transfers", `{"url":"https://youtube.com/watch?v=abc12345678","quality":"720p"}`, "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if svc.downloaded == nil || svc.downloaded.Quality != enums.Quality720p {
		t.Fatalf("input = %#v", svc.downloaded)
	}

	var envelope struct {
		Data mediaItemResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ID != "youtube_abc12345678" {
		t.Fatalf("id = %q", envelope.Data.ID)
	}
}

func TestTransferCreateRequiresAuth(t *testing.T) {
	handler := TransferCreate(newFakeMediaService(), nil)

	req := authedRequest(http.MethodPost, "/api/v1/transfers", `{"url":"https://youtube.com/watch?v=abc"}`, "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTransferCreateRejectsBadBody(t *testing.T) {
	handler := TransferCreate(newFakeMediaService(), nil)

	req := authedRequest(http.MethodPost, "/api/v1/transfers", `{"quality":"720p"}`, "user-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMediaGetHidesForeignItems(t *testing.T) {
	svc := newFakeMediaService(ownedItem("youtube_abc", "user-1"))
	handler := MediaGet(svc, nil)

	req := withRouteParam(authedRequest(http.MethodGet, "/api/v1/media/youtube_abc", "", "user-2"), "id", "youtube_abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMediaGetReturnsOwnItem(t *testing.T) {
	svc := newFakeMediaService(ownedItem("youtube_abc", "user-1"))
	handler := MediaGet(svc, nil)

	req := withRouteParam(authedRequest(http.MethodGet, "/api/v1/media/youtube_abc", "", "user-1"), "id", "youtube_abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestSelectionToggleFlow(t *testing.T) {
	svc := newFakeMediaService(ownedItem("youtube_abc", "user-1"))
	store := selection.NewStore()

	begin := SelectionBegin(svc, store, nil)
	req := withRouteParam(authedRequest(http.MethodPost, "/api/v1/media/youtube_abc/selection", "", "user-1"), "id", "youtube_abc")
	rec := httptest.NewRecorder()
	begin.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("begin status = %d", rec.Code)
	}

	toggle := SelectionToggle(svc, store, nil, nil)
	req = withRouteParam(authedRequest(http.MethodPost, "/api/v1/media/youtube_abc/selection/toggle", `{"platform":"tiktok"}`, "user-1"), "id", "youtube_abc")
	rec = httptest.NewRecorder()
	toggle.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data selectionResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Platforms) != 1 || envelope.Data.Platforms[0] != enums.PlatformTikTok {
		t.Fatalf("platforms = %#v", envelope.Data.Platforms)
	}
}

func TestSelectionToggleWithoutBeginOpensSession(t *testing.T) {
	svc := newFakeMediaService(ownedItem("youtube_abc", "user-1"))
	store := selection.NewStore()

	handler := SelectionToggle(svc, store, nil, nil)
	req := withRouteParam(authedRequest(http.MethodPost, "/api/v1/media/youtube_abc/selection/toggle", `{"platform":"facebook"}`, "user-1"), "id", "youtube_abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data selectionResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.State != string(enums.SelectionStateSelecting) {
		t.Fatalf("state = %q, want selecting", envelope.Data.State)
	}
	if len(envelope.Data.Platforms) != 1 || envelope.Data.Platforms[0] != enums.PlatformFacebook {
		t.Fatalf("platforms = %#v", envelope.Data.Platforms)
	}
}

func TestSelectionToggleInvalidPlatform(t *testing.T) {
	svc := newFakeMediaService(ownedItem("youtube_abc", "user-1"))
	store := selection.NewStore()
	if err := store.Begin("youtube_abc"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	handler := SelectionToggle(svc, store, nil, nil)
	req := withRouteParam(authedRequest(http.MethodPost, "/api/v1/media/youtube_abc/selection/toggle", `{"platform":"vimeo"}`, "user-1"), "id", "youtube_abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUploadCreate(t *testing.T) {
	orch := &fakeOrchestrator{result: &upload.Result{
		MediaID: "youtube_abc",
		Results: []upload.PlatformResult{
			{Platform: enums.PlatformTikTok, Success: true, Attempts: 1, RemoteID: "777"},
		},
	}}
	handler := UploadCreate(orch, nil)

	body := `{"metadata":{"title":"clip","privacy":"public"}}`
	req := withRouteParam(authedRequest(http.MethodPost, "/api/v1/media/youtube_abc/upload", body, "user-1"), "id", "youtube_abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if orch.input == nil || orch.input.MediaID != "youtube_abc" || orch.input.UserID != "user-1" {
		t.Fatalf("input = %#v", orch.input)
	}
	if orch.input.Metadata.Privacy != "public" {
		t.Fatalf("privacy = %q", orch.input.Metadata.Privacy)
	}

	var envelope struct {
		Data struct {
			AllSucceeded bool `json:"all_succeeded"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.AllSucceeded {
		t.Fatal("expected all_succeeded")
	}
}

func TestUploadCreateEmptySelection(t *testing.T) {
	orch := &fakeOrchestrator{err: pkgerrors.New(pkgerrors.CodeStateConflict, "no platforms selected")}
	handler := UploadCreate(orch, nil)

	req := withRouteParam(authedRequest(http.MethodPost, "/api/v1/media/youtube_abc/upload", `{"metadata":{}}`, "user-1"), "id", "youtube_abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

type fakeLedgerService struct {
	platform []models.StatsCounter
	user     []models.StatsCounter
}

func (f *fakeLedgerService) RecordDownload(context.Context, ledger.DownloadRecord) {}
func (f *fakeLedgerService) RecordUpload(context.Context, ledger.UploadRecord)     {}

func (f *fakeLedgerService) PlatformStats(context.Context) ([]models.StatsCounter, error) {
	return f.platform, nil
}

func (f *fakeLedgerService) UserStats(context.Context, string) ([]models.StatsCounter, error) {
	return f.user, nil
}

func TestStatsPlatforms(t *testing.T) {
	svc := &fakeLedgerService{platform: []models.StatsCounter{
		{Scope: "platform", ScopeKey: "youtube", Metric: enums.MetricTypeDownloads, Success: 3, Failed: 1, Total: 4},
	}}
	handler := StatsPlatforms(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/stats/platforms", "", "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope struct {
		Data []statsCounterResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].Total != 4 {
		t.Fatalf("data = %#v", envelope.Data)
	}
}

func TestStatsMeRequiresAuth(t *testing.T) {
	handler := StatsMe(&fakeLedgerService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/stats/me", "", ""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
