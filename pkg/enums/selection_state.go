package enums

// SelectionState tracks where a media item sits in the choose-targets flow.
type SelectionState string

const (
	SelectionStateNone      SelectionState = "no_selection"
	SelectionStateSelecting SelectionState = "selecting"
	SelectionStateUploading SelectionState = "uploading"
	SelectionStateClosed    SelectionState = "closed"
)

var validSelectionStates = []SelectionState{
	SelectionStateNone,
	SelectionStateSelecting,
	SelectionStateUploading,
	SelectionStateClosed,
}

// IsValid reports whether the value matches the canonical selection state enum.
func (s SelectionState) IsValid() bool {
	for _, candidate := range validSelectionStates {
		if candidate == s {
			return true
		}
	}
	return false
}
