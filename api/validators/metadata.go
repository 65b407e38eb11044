package validators

import (
	"fmt"
	"strings"

	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
)

// Metadata size caps match the strictest destination that accepts each field.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 5000
	MaxTagsLen        = 500
	MaxCaptionLen     = 2200
)

var validPrivacyValues = []string{"private", "public", "unlisted"}

// PublishMetadata is the request shape for destination descriptors.
type PublishMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Caption     string   `json:"caption"`
	Privacy     string   `json:"privacy"`
}

// ValidateMetadata enforces the field caps and normalizes privacy. Empty
// privacy defaults to private.
func ValidateMetadata(meta *PublishMetadata) error {
	details := map[string]string{}

	if len(meta.Title) > MaxTitleLen {
		details["title"] = fmt.Sprintf("must be at most %d characters", MaxTitleLen)
	}
	if len(meta.Description) > MaxDescriptionLen {
		details["description"] = fmt.Sprintf("must be at most %d characters", MaxDescriptionLen)
	}
	if len(strings.Join(meta.Tags, ",")) > MaxTagsLen {
		details["tags"] = fmt.Sprintf("joined tags must be at most %d characters", MaxTagsLen)
	}
	if len(meta.Caption) > MaxCaptionLen {
		details["caption"] = fmt.Sprintf("must be at most %d characters", MaxCaptionLen)
	}

	meta.Privacy = strings.ToLower(strings.TrimSpace(meta.Privacy))
	if meta.Privacy == "" {
		meta.Privacy = "private"
	}
	if !isValidPrivacy(meta.Privacy) {
		details["privacy"] = fmt.Sprintf("must be one of %s", strings.Join(validPrivacyValues, ", "))
	}

	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func isValidPrivacy(value string) bool {
	for _, candidate := range validPrivacyValues {
		if candidate == value {
			return true
		}
	}
	return false
}

// SanitizeString trims whitespace and truncates to maxLen bytes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
