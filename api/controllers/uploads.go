package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vidrelay/vidrelay-backend/api/middleware"
	"github.com/vidrelay/vidrelay-backend/api/responses"
	"github.com/vidrelay/vidrelay-backend/api/validators"
	"github.com/vidrelay/vidrelay-backend/internal/transport"
	"github.com/vidrelay/vidrelay-backend/internal/upload"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

type uploadCreateRequest struct {
	Metadata validators.PublishMetadata `json:"metadata"`
}

// UploadCreate runs an upload round against the frozen destination set and
// returns the per-platform outcomes.
func UploadCreate(orch upload.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		mediaID := strings.TrimSpace(chi.URLParam(r, "id"))
		if mediaID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "media id is required"))
			return
		}

		var payload uploadCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ValidateMetadata(&payload.Metadata); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := orch.Upload(r.Context(), upload.Input{
			MediaID: mediaID,
			UserID:  userID,
			Metadata: transport.Metadata{
				Title:       validators.SanitizeString(payload.Metadata.Title, validators.MaxTitleLen),
				Description: validators.SanitizeString(payload.Metadata.Description, validators.MaxDescriptionLen),
				Tags:        payload.Metadata.Tags,
				Caption:     validators.SanitizeString(payload.Metadata.Caption, validators.MaxCaptionLen),
				Privacy:     payload.Metadata.Privacy,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"media_id":      result.MediaID,
			"results":       result.Results,
			"all_succeeded": result.AllSucceeded(),
		})
	}
}
