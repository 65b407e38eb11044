package controllers

import (
	"net/http"
	"strings"

	"github.com/vidrelay/vidrelay-backend/api/middleware"
	"github.com/vidrelay/vidrelay-backend/api/responses"
	"github.com/vidrelay/vidrelay-backend/api/validators"
	"github.com/vidrelay/vidrelay-backend/internal/download"
	"github.com/vidrelay/vidrelay-backend/internal/events"
	"github.com/vidrelay/vidrelay-backend/internal/selection"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

type selectionToggleRequest struct {
	Platform string `json:"platform" validate:"required"`
}

type selectionResponse struct {
	MediaID   string           `json:"media_id"`
	State     string           `json:"state"`
	Platforms []enums.Platform `json:"platforms"`
}

// SelectionBegin opens a destination picking session for a media item.
func SelectionBegin(media download.Service, store *selection.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := ownedMediaItem(r, media)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.Begin(item.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, selectionResponse{
			MediaID:   item.ID,
			State:     string(store.State(item.ID)),
			Platforms: store.Selected(item.ID),
		})
	}
}

// SelectionToggle flips one destination and echoes the resulting set to the
// front-end event feed. The first toggle for a media item opens its session,
// so the front-end can drive picking with toggle events alone.
func SelectionToggle(media download.Service, store *selection.Store, publisher events.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := ownedMediaItem(r, media)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload selectionToggleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		platform, err := enums.ParsePlatform(strings.TrimSpace(strings.ToLower(payload.Platform)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid platform"))
			return
		}

		selected, err := store.Toggle(item.ID, platform)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if publisher != nil {
			publishErr := publisher.Publish(r.Context(), events.Event{
				Type:    enums.FrontendEventPlatformToggle,
				UserID:  middleware.UserIDFromContext(r.Context()),
				MediaID: item.ID,
				Payload: map[string]any{"platforms": selected},
			})
			if publishErr != nil && logg != nil {
				logg.Warn(logg.WithField(r.Context(), "publish_error", publishErr.Error()), "platform toggle event dropped")
			}
		}

		responses.WriteSuccess(w, selectionResponse{
			MediaID:   item.ID,
			State:     string(store.State(item.ID)),
			Platforms: selected,
		})
	}
}

// SelectionGet reports the current session state and picks.
func SelectionGet(media download.Service, store *selection.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := ownedMediaItem(r, media)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, selectionResponse{
			MediaID:   item.ID,
			State:     string(store.State(item.ID)),
			Platforms: store.Selected(item.ID),
		})
	}
}
