package enums

import "fmt"

// MetricType distinguishes the two counter families the ledger maintains.
type MetricType string

const (
	MetricTypeDownloads MetricType = "downloads"
	MetricTypeUploads   MetricType = "uploads"
)

var validMetricTypes = []MetricType{
	MetricTypeDownloads,
	MetricTypeUploads,
}

// IsValid reports whether the value matches the canonical metric type enum.
func (m MetricType) IsValid() bool {
	for _, candidate := range validMetricTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMetricType converts the raw string to MetricType.
func ParseMetricType(value string) (MetricType, error) {
	for _, candidate := range validMetricTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid metric type %q", value)
}
