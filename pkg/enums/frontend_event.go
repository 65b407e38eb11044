package enums

// FrontendEventType is the canonical event type published to the conversational front end.
type FrontendEventType string

const (
	FrontendEventQualityOptions FrontendEventType = "quality-options"
	FrontendEventEditOptions    FrontendEventType = "edit-options"
	FrontendEventPlatformToggle FrontendEventType = "platform-toggle"
	FrontendEventUploadResult   FrontendEventType = "upload-result"
)

var validFrontendEventTypes = []FrontendEventType{
	FrontendEventQualityOptions,
	FrontendEventEditOptions,
	FrontendEventPlatformToggle,
	FrontendEventUploadResult,
}

// IsValid reports whether the value matches the canonical front-end event enum.
func (f FrontendEventType) IsValid() bool {
	for _, candidate := range validFrontendEventTypes {
		if candidate == f {
			return true
		}
	}
	return false
}
