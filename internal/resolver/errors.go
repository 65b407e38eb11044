package resolver

import "errors"

var (
	ErrEmptyURL            = errors.New("url is required")
	ErrInvalidScheme       = errors.New("url must use http or https")
	ErrUnsupportedPlatform = errors.New("url does not belong to a supported platform")
)
