package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

var dailymotionIDRe = regexp.MustCompile(`(?:dailymotion\.com/video/|dai\.ly/)([a-zA-Z0-9]+)`)

type dailymotionTransport struct {
	deps Deps
	cfg  config.DailymotionConfig
}

func (t *dailymotionTransport) Platform() enums.Platform { return enums.PlatformDailymotion }

func (t *dailymotionTransport) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	nativeID, err := dailymotionNativeID(req.URL)
	if err != nil {
		return FetchResult{}, err
	}

	streamURL, err := t.resolveStreamURL(ctx, nativeID, req.Quality)
	if err != nil {
		return FetchResult{}, err
	}

	destPath := filepath.Join(req.DestDir, FileName(enums.PlatformDailymotion, nativeID))
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

// resolveStreamURL uses the public player metadata endpoint. Qualities map to
// lists of {type,url} pairs; progressive mp4 entries are preferred.
func (t *dailymotionTransport) resolveStreamURL(ctx context.Context, videoID string, quality enums.Quality) (string, error) {
	endpoint := fmt.Sprintf("%s/player/metadata/video/%s", strings.TrimRight(t.cfg.PlayerURL, "/"), videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building metadata request: %w", err)
	}

	resp, err := t.deps.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolving dailymotion stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata endpoint returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var meta struct {
		Qualities map[string][]struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"qualities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("decoding metadata response: %w", err)
	}

	order := []string{"1080", "720", "480", "auto"}
	switch quality {
	case enums.Quality720p:
		order = []string{"720", "480", "auto"}
	case enums.Quality1080:
		order = []string{"1080", "720", "auto"}
	}

	for _, label := range order {
		for _, source := range meta.Qualities[label] {
			if strings.Contains(source.Type, "mp4") || source.Type == "application/x-mpegURL" {
				return source.URL, nil
			}
		}
	}
	return "", fmt.Errorf("no playable source for video %s", videoID)
}

// Publish follows the three-step flow: lease an upload URL, post the file,
// then create the video object against the authenticated channel.
func (t *dailymotionTransport) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	uploadURL, err := t.leaseUploadURL(ctx, req.Credentials.AccessToken)
	if err != nil {
		return PublishResult{}, err
	}

	resp, err := uploadFileField(ctx, t.deps.Client, uploadURL, "file", req.Path, nil, nil)
	if err != nil {
		return PublishResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PublishResult{}, fmt.Errorf("dailymotion file upload returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var uploaded struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return PublishResult{}, fmt.Errorf("decoding file upload response: %w", err)
	}
	if uploaded.URL == "" {
		return PublishResult{}, fmt.Errorf("file upload response missing url")
	}

	return t.createVideo(ctx, req, uploaded.URL)
}

func (t *dailymotionTransport) leaseUploadURL(ctx context.Context, token string) (string, error) {
	endpoint := strings.TrimRight(t.cfg.APIBaseURL, "/") + "/file/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building upload lease request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.deps.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("leasing upload url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload lease returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var lease struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lease); err != nil {
		return "", fmt.Errorf("decoding upload lease: %w", err)
	}
	if lease.UploadURL == "" {
		return "", fmt.Errorf("upload lease missing upload_url")
	}
	return lease.UploadURL, nil
}

func (t *dailymotionTransport) createVideo(ctx context.Context, req PublishRequest, fileURL string) (PublishResult, error) {
	form := url.Values{}
	form.Set("url", fileURL)
	form.Set("title", req.Metadata.Title)
	form.Set("description", req.Metadata.Description)
	form.Set("tags", strings.Join(req.Metadata.Tags, ","))
	form.Set("published", "true")
	if req.Metadata.Privacy == "private" {
		form.Set("private", "true")
	}

	endpoint := strings.TrimRight(t.cfg.APIBaseURL, "/") + "/me/videos"
	createReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return PublishResult{}, fmt.Errorf("building video create request: %w", err)
	}
	createReq.Header.Set("Authorization", "Bearer "+req.Credentials.AccessToken)
	createReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.deps.Client.Do(createReq)
	if err != nil {
		return PublishResult{}, fmt.Errorf("creating dailymotion video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PublishResult{}, fmt.Errorf("video create returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return PublishResult{}, fmt.Errorf("decoding video create response: %w", err)
	}
	if created.ID == "" {
		return PublishResult{}, fmt.Errorf("video create response missing id")
	}

	return PublishResult{
		RemoteID:  created.ID,
		RemoteURL: "https://www.dailymotion.com/video/" + created.ID,
	}, nil
}

func dailymotionNativeID(rawURL string) (string, error) {
	m := dailymotionIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("no video id in dailymotion url %q", rawURL)
	}
	return m[1], nil
}
