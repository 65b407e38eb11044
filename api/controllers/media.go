package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidrelay/vidrelay-backend/api/middleware"
	"github.com/vidrelay/vidrelay-backend/api/responses"
	"github.com/vidrelay/vidrelay-backend/api/validators"
	"github.com/vidrelay/vidrelay-backend/internal/download"
	"github.com/vidrelay/vidrelay-backend/pkg/db/models"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

type transferCreateRequest struct {
	URL     string `json:"url" validate:"required,url"`
	Quality string `json:"quality"`
}

type mediaItemResponse struct {
	ID             string    `json:"id"`
	SourceURL      string    `json:"source_url"`
	SourcePlatform string    `json:"source_platform"`
	LocalPath      string    `json:"local_path"`
	SizeBytes      int64     `json:"size_bytes"`
	Quality        string    `json:"quality"`
	DerivedFrom    *string   `json:"derived_from,omitempty"`
	DownloadedAt   time.Time `json:"downloaded_at"`
}

func toMediaItemResponse(item *models.MediaItem) mediaItemResponse {
	return mediaItemResponse{
		ID:             item.ID,
		SourceURL:      item.SourceURL,
		SourcePlatform: string(item.SourcePlatform),
		LocalPath:      item.LocalPath,
		SizeBytes:      item.SizeBytes,
		Quality:        string(item.Quality),
		DerivedFrom:    item.DerivedFrom,
		DownloadedAt:   item.DownloadedAt,
	}
}

// TransferCreate pulls a video from its source platform onto local disk.
func TransferCreate(svc download.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload transferCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quality := enums.Quality(strings.TrimSpace(strings.ToLower(payload.Quality)))
		item, err := svc.Download(r.Context(), download.Input{
			URL:     strings.TrimSpace(payload.URL),
			Quality: quality,
			UserID:  userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toMediaItemResponse(item))
	}
}

// MediaGet returns one media item owned by the caller.
func MediaGet(svc download.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := ownedMediaItem(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toMediaItemResponse(item))
	}
}

// MediaList returns the caller's media items, newest first.
func MediaList(svc download.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		items, err := svc.ListByOwner(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]mediaItemResponse, 0, len(items))
		for i := range items {
			out = append(out, toMediaItemResponse(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ownedMediaItem loads the {id} route param and enforces ownership. A foreign
// item reads as not found so IDs cannot be probed.
func ownedMediaItem(r *http.Request, svc download.Service) (*models.MediaItem, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media id is required")
	}

	item, err := svc.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if item.OwnerUserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "media item not found")
	}
	return item, nil
}
