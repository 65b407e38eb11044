package controllers

import (
	"net/http"
	"strings"

	"github.com/vidrelay/vidrelay-backend/api/middleware"
	"github.com/vidrelay/vidrelay-backend/api/responses"
	"github.com/vidrelay/vidrelay-backend/api/validators"
	"github.com/vidrelay/vidrelay-backend/internal/events"
	"github.com/vidrelay/vidrelay-backend/internal/resolver"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

type resolveRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type resolveResponse struct {
	Platform  enums.Platform  `json:"platform"`
	Qualities []enums.Quality `json:"qualities"`
}

// Resolve maps a submitted URL to its source platform and the selectable
// qualities, and offers them to the front-end event feed.
func Resolve(publisher events.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload resolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		platform, err := resolver.ValidateURL(strings.TrimSpace(payload.URL))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}

		out := resolveResponse{Platform: platform, Qualities: enums.Qualities()}

		if publisher != nil {
			publishErr := publisher.Publish(r.Context(), events.Event{
				Type:   enums.FrontendEventQualityOptions,
				UserID: middleware.UserIDFromContext(r.Context()),
				Payload: map[string]any{
					"url":       payload.URL,
					"platform":  platform,
					"qualities": out.Qualities,
				},
			})
			if publishErr != nil && logg != nil {
				logg.Warn(logg.WithField(r.Context(), "publish_error", publishErr.Error()), "quality options event dropped")
			}
		}

		responses.WriteSuccess(w, out)
	}
}
