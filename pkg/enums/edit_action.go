package enums

import "fmt"

// EditAction names one parameterized transform the external edit tool can apply.
type EditAction string

const (
	EditActionTrim          EditAction = "trim"
	EditActionCaption       EditAction = "caption"
	EditActionBlurFace      EditAction = "blur_face"
	EditActionBlurSensitive EditAction = "blur_sensitive"
	EditActionSubtitle      EditAction = "subtitle"
	EditActionEnhance       EditAction = "enhance"
)

var validEditActions = []EditAction{
	EditActionTrim,
	EditActionCaption,
	EditActionBlurFace,
	EditActionBlurSensitive,
	EditActionSubtitle,
	EditActionEnhance,
}

// IsValid reports whether the value matches the canonical edit action enum.
func (e EditAction) IsValid() bool {
	for _, candidate := range validEditActions {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEditAction converts the raw string to EditAction.
func ParseEditAction(value string) (EditAction, error) {
	for _, candidate := range validEditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid edit action %q", value)
}
