package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

var tiktokIDRe = regexp.MustCompile(`/video/(\d+)`)

type tiktokTransport struct {
	deps Deps
	cfg  config.TikTokConfig
}

func (t *tiktokTransport) Platform() enums.Platform { return enums.PlatformTikTok }

func (t *tiktokTransport) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	nativeID, err := tiktokNativeID(req.URL)
	if err != nil {
		return FetchResult{}, err
	}

	playURL, err := t.resolvePlayURL(ctx, nativeID)
	if err != nil {
		return FetchResult{}, err
	}

	destPath := filepath.Join(req.DestDir, FileName(enums.PlatformTikTok, nativeID))
	fetchReq, err := http.NewRequest(http.MethodGet, playURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("building stream request: %w", err)
	}
	fetchReq.Header.Set("User-Agent", t.cfg.UserAgent)

	size, err := streamToFile(ctx, t.deps.Client, fetchReq, destPath, req.MaxBytes)
	if err != nil {
		return FetchResult{}, err
	}

	return FetchResult{Path: destPath, NativeID: nativeID, SizeBytes: size}, nil
}

// resolvePlayURL hits the aweme detail endpoint with the device user agent.
// The no-watermark address lives under play_addr.
func (t *tiktokTransport) resolvePlayURL(ctx context.Context, awemeID string) (string, error) {
	endpoint := fmt.Sprintf("%s/aweme/v1/feed/?aweme_id=%s", t.cfg.APIBaseURL, awemeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building aweme request: %w", err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.deps.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolving tiktok stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("aweme endpoint returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var feed struct {
		AwemeList []struct {
			Video struct {
				PlayAddr struct {
					URLList []string `json:"url_list"`
				} `json:"play_addr"`
			} `json:"video"`
		} `json:"aweme_list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return "", fmt.Errorf("decoding aweme response: %w", err)
	}

	if len(feed.AwemeList) == 0 || len(feed.AwemeList[0].Video.PlayAddr.URLList) == 0 {
		return "", fmt.Errorf("no play address for aweme %s", awemeID)
	}
	return feed.AwemeList[0].Video.PlayAddr.URLList[0], nil
}

func (t *tiktokTransport) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	endpoint := t.cfg.APIBaseURL + "/aweme/v1/create/video/"
	resp, err := uploadFileField(ctx, t.deps.Client, endpoint, "video", req.Path,
		map[string]string{"text": req.Metadata.Caption},
		map[string]string{"User-Agent": req.Credentials.UserAgent},
	)
	if err != nil {
		return PublishResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PublishResult{}, fmt.Errorf("tiktok upload returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var created struct {
		Aweme struct {
			AwemeID  string `json:"aweme_id"`
			ShareURL string `json:"share_url"`
		} `json:"aweme"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return PublishResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if created.Aweme.AwemeID == "" {
		return PublishResult{}, fmt.Errorf("upload response missing aweme id")
	}

	return PublishResult{RemoteID: created.Aweme.AwemeID, RemoteURL: created.Aweme.ShareURL}, nil
}

func tiktokNativeID(rawURL string) (string, error) {
	m := tiktokIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("no video id in tiktok url %q", rawURL)
	}
	return m[1], nil
}
