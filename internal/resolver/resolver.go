package resolver

import (
	"net/url"
	"strings"

	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

// hostRules maps URL substrings to platforms. Order matters: youtu.be and
// instagram reels style short hosts are checked alongside the canonical hosts.
var hostRules = []struct {
	fragment string
	platform enums.Platform
}{
	{"youtube.com", enums.PlatformYouTube},
	{"youtu.be", enums.PlatformYouTube},
	{"tiktok.com", enums.PlatformTikTok},
	{"facebook.com", enums.PlatformFacebook},
	{"fb.watch", enums.PlatformFacebook},
	{"dailymotion.com", enums.PlatformDailymotion},
	{"dai.ly", enums.PlatformDailymotion},
	{"instagram.com", enums.PlatformInstagram},
}

// Resolve maps a media URL to its source platform. The second return is false
// when the URL belongs to no supported platform.
func Resolve(rawURL string) (enums.Platform, bool) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", false
	}

	lowered := strings.ToLower(trimmed)
	for _, rule := range hostRules {
		if strings.Contains(lowered, rule.fragment) {
			return rule.platform, true
		}
	}
	return "", false
}

// ValidateURL checks a candidate URL before any resolution or download work.
// The checks run in a fixed order: emptiness, scheme, then platform support.
func ValidateURL(rawURL string) (enums.Platform, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", ErrEmptyURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", ErrInvalidScheme
	}

	platform, ok := Resolve(trimmed)
	if !ok {
		return "", ErrUnsupportedPlatform
	}
	return platform, nil
}
