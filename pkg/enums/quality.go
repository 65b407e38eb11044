package enums

import "fmt"

// Quality names a destination quality the user can pick before download.
type Quality string

const (
	Quality720p Quality = "720p"
	Quality1080 Quality = "1080p"
	QualityBest Quality = "best"
)

var validQualities = []Quality{
	Quality720p,
	Quality1080,
	QualityBest,
}

// Qualities returns the selectable qualities in menu order.
func Qualities() []Quality {
	out := make([]Quality, len(validQualities))
	copy(out, validQualities)
	return out
}

// IsValid reports whether the value matches the canonical quality enum.
func (q Quality) IsValid() bool {
	for _, candidate := range validQualities {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuality converts the raw string to Quality.
func ParseQuality(value string) (Quality, error) {
	for _, candidate := range validQualities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quality %q", value)
}
