package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

var (
	instagramIDRe = regexp.MustCompile(`/(?:reel|reels|p|tv)/([A-Za-z0-9_-]+)`)

	instagramVideoRe = regexp.MustCompile(`"video_url"\s*:\s*"([^"]+)"`)
)

type instagramTransport struct {
	deps Deps
	cfg  config.InstagramConfig
}

func (t *instagramTransport) Platform() enums.Platform { return enums.PlatformInstagram }

func (t *instagramTransport) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	nativeID, err := instagramNativeID(req.URL)
	if err != nil {
		return FetchResult{}, err
	}

	streamURL, err := t.scrapeStreamURL(ctx, req.URL)
	if err != nil {
		return FetchResult{}, err
	}

	destPath := filepath.Join(req.DestDir, FileName(enums.PlatformInstagram, nativeID))
	fetchReq, err := http.NewRequest(http.MethodGet, streamURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("building stream request: %w", err)
	}

	size, err := streamToFile(ctx, t.deps.Client, fetchReq, destPath, req.MaxBytes)
	if err != nil {
		return FetchResult{}, err
	}

	return FetchResult{Path: destPath, NativeID: nativeID, SizeBytes: size}, nil
}

// scrapeStreamURL loads the embed page, which carries the direct video url
// without requiring a session.
func (t *instagramTransport) scrapeStreamURL(ctx context.Context, pageURL string) (string, error) {
	embedURL := strings.TrimRight(strings.SplitN(pageURL, "?", 2)[0], "/") + "/embed/captioned/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, embedURL, nil)
	if err != nil {
		return "", fmt.Errorf("building embed request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	resp, err := t.deps.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching embed page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("embed page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("reading embed page: %w", err)
	}

	if m := instagramVideoRe.FindStringSubmatch(string(body)); m != nil {
		return unescapeJSONURL(m[1]), nil
	}
	return "", fmt.Errorf("no video source found on embed page")
}

// Publish runs the Graph API container flow: create a media container for the
// uploaded file, then publish it to the account feed.
func (t *instagramTransport) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	base := strings.TrimRight(t.cfg.GraphAPIURL, "/")

	createEndpoint := base + "/me/media"
	resp, err := uploadFileField(ctx, t.deps.Client, createEndpoint, "video", req.Path,
		map[string]string{
			"media_type":   "REELS",
			"caption":      req.Metadata.Caption,
			"access_token": req.Credentials.AccessToken,
		}, nil)
	if err != nil {
		return PublishResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PublishResult{}, fmt.Errorf("instagram container create returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var container struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return PublishResult{}, fmt.Errorf("decoding container response: %w", err)
	}
	if container.ID == "" {
		return PublishResult{}, fmt.Errorf("container response missing id")
	}

	publishEndpoint := fmt.Sprintf("%s/me/media_publish?creation_id=%s&access_token=%s",
		base, container.ID, req.Credentials.AccessToken)
	pubReq, err := http.NewRequestWithContext(ctx, http.MethodPost, publishEndpoint, nil)
	if err != nil {
		return PublishResult{}, fmt.Errorf("building publish request: %w", err)
	}

	pubResp, err := t.deps.Client.Do(pubReq)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publishing instagram media: %w", err)
	}
	defer pubResp.Body.Close()

	if pubResp.StatusCode != http.StatusOK {
		return PublishResult{}, fmt.Errorf("media publish returned status %d: %s", pubResp.StatusCode, readErrorBody(pubResp))
	}

	var published struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(pubResp.Body).Decode(&published); err != nil {
		return PublishResult{}, fmt.Errorf("decoding publish response: %w", err)
	}
	if published.ID == "" {
		return PublishResult{}, fmt.Errorf("publish response missing media id")
	}

	return PublishResult{
		RemoteID:  published.ID,
		RemoteURL: "https://www.instagram.com/p/" + published.ID + "/",
	}, nil
}

func instagramNativeID(rawURL string) (string, error) {
	m := instagramIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("no media id in instagram url %q", rawURL)
	}
	return m[1], nil
}
