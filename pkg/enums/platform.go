package enums

import "fmt"

// Platform identifies an external video platform the pipeline can pull from or publish to.
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformTikTok      Platform = "tiktok"
	PlatformFacebook    Platform = "facebook"
	PlatformDailymotion Platform = "dailymotion"
	PlatformInstagram   Platform = "instagram"
)

var validPlatforms = []Platform{
	PlatformYouTube,
	PlatformTikTok,
	PlatformFacebook,
	PlatformDailymotion,
	PlatformInstagram,
}

// Platforms returns the supported platforms in canonical order.
func Platforms() []Platform {
	out := make([]Platform, len(validPlatforms))
	copy(out, validPlatforms)
	return out
}

// IsValid reports whether the value matches the canonical platform enum.
func (p Platform) IsValid() bool {
	for _, candidate := range validPlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlatform converts the raw string to Platform.
func ParsePlatform(value string) (Platform, error) {
	for _, candidate := range validPlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform %q", value)
}
