package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vidrelay/vidrelay-backend/internal/platformauth"
	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

// FetchRequest asks a transport to pull one media item to local disk.
type FetchRequest struct {
	URL      string
	Quality  enums.Quality
	DestDir  string
	MaxBytes int64
}

// FetchResult reports where the media landed.
type FetchResult struct {
	Path      string
	NativeID  string
	SizeBytes int64
}

// Metadata carries the publish-time descriptors a destination accepts.
// Unsupported fields are ignored per platform.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
	Caption     string
	Privacy     string
}

// PublishRequest asks a transport to push a local file to its platform.
type PublishRequest struct {
	Path        string
	Metadata    Metadata
	Credentials platformauth.Credentials
}

// PublishResult reports the remote identity of the published media.
type PublishResult struct {
	RemoteID  string
	RemoteURL string
}

// Transport is one platform adapter. Fetch pulls media from the platform,
// Publish pushes a local file to it. Implementations are stateless and safe
// for concurrent use.
type Transport interface {
	Platform() enums.Platform
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
}

// Deps carries the collaborators every transport shares.
type Deps struct {
	Client    *http.Client
	Platforms config.PlatformsConfig
	Logger    *logger.Logger
}

// ForPlatform returns the adapter for the platform. Dispatch is a plain
// switch so the supported set is fixed at compile time.
func ForPlatform(platform enums.Platform, deps Deps) (Transport, error) {
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 5 * time.Minute}
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	switch platform {
	case enums.PlatformYouTube:
		return &youtubeTransport{deps: deps, cfg: deps.Platforms.YouTube}, nil
	case enums.PlatformTikTok:
		return &tiktokTransport{deps: deps, cfg: deps.Platforms.TikTok}, nil
	case enums.PlatformFacebook:
		return &facebookTransport{deps: deps, cfg: deps.Platforms.Facebook}, nil
	case enums.PlatformDailymotion:
		return &dailymotionTransport{deps: deps, cfg: deps.Platforms.Dailymotion}, nil
	case enums.PlatformInstagram:
		return &instagramTransport{deps: deps, cfg: deps.Platforms.Instagram}, nil
	default:
		return nil, fmt.Errorf("no transport for platform %q", platform)
	}
}

// FileName builds the deterministic local filename for one media item.
// Re-downloading the same source overwrites rather than duplicating.
func FileName(platform enums.Platform, nativeID string) string {
	return fmt.Sprintf("%s_%s.mp4", platform, nativeID)
}
