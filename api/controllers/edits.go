package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vidrelay/vidrelay-backend/api/responses"
	"github.com/vidrelay/vidrelay-backend/api/validators"
	"github.com/vidrelay/vidrelay-backend/internal/download"
	"github.com/vidrelay/vidrelay-backend/internal/editing"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

type editCreateRequest struct {
	Action string     `json:"action" validate:"required"`
	Params editParams `json:"params"`
}

type editParams struct {
	TrimStartSeconds float64 `json:"trim_start_seconds"`
	TrimEndSeconds   float64 `json:"trim_end_seconds"`
	Text             string  `json:"text"`
	SubtitlePath     string  `json:"subtitle_path"`
}

// EditCreate applies a transform to a downloaded file and registers the
// derived output as a new media item.
func EditCreate(media download.Service, editor editing.Editor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := ownedMediaItem(r, media)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload editCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := enums.ParseEditAction(strings.TrimSpace(strings.ToLower(payload.Action)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid edit action"))
			return
		}

		outPath, err := editor.Apply(r.Context(), editing.EditRequest{
			SourcePath: item.LocalPath,
			Action:     action,
			Params: editing.EditParams{
				TrimStart:    secondsToDuration(payload.Params.TrimStartSeconds),
				TrimEnd:      secondsToDuration(payload.Params.TrimEndSeconds),
				Text:         validators.SanitizeString(payload.Params.Text, 0),
				SubtitlePath: strings.TrimSpace(payload.Params.SubtitlePath),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		derived, err := media.RegisterDerived(r.Context(), item, outPath)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toMediaItemResponse(derived))
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
