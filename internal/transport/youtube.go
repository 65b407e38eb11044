package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

var youtubeIDRe = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/|/embed/)([A-Za-z0-9_-]{11})`)

type youtubeTransport struct {
	deps Deps
	cfg  config.YouTubeConfig
}

func (t *youtubeTransport) Platform() enums.Platform { return enums.PlatformYouTube }

func (t *youtubeTransport) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	nativeID, err := youtubeNativeID(req.URL)
	if err != nil {
		return FetchResult{}, err
	}

	streamURL, err := t.resolveStreamURL(ctx, nativeID, req.Quality)
	if err != nil {
		return FetchResult{}, err
	}

	destPath := filepath.Join(req.DestDir, FileName(enums.PlatformYouTube, nativeID))
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

// resolveStreamURL asks the player endpoint for the progressive formats and
// picks the one matching the requested quality.
func (t *youtubeTransport) resolveStreamURL(ctx context.Context, videoID string, quality enums.Quality) (string, error) {
	payload := map[string]any{
		"videoId": videoID,
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    "ANDROID",
				"clientVersion": "19.09.37",
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding player request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.ResolveURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building player request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.deps.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolving youtube stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("player endpoint returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var player struct {
		StreamingData struct {
			Formats []struct {
				URL          string `json:"url"`
				QualityLabel string `json:"qualityLabel"`
				MimeType     string `json:"mimeType"`
			} `json:"formats"`
		} `json:"streamingData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return "", fmt.Errorf("decoding player response: %w", err)
	}

	formats := player.StreamingData.Formats
	if len(formats) == 0 {
		return "", fmt.Errorf("no progressive formats for video %s", videoID)
	}

	want := strings.TrimSuffix(string(quality), "p")
	best := formats[len(formats)-1].URL
	for _, format := range formats {
		if !strings.Contains(format.MimeType, "video/mp4") {
			continue
		}
		if quality == enums.QualityBest {
			best = format.URL
			continue
		}
		if strings.HasPrefix(format.QualityLabel, want) {
			return format.URL, nil
		}
	}
	return best, nil
}

func (t *youtubeTransport) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	snippet := map[string]any{
		"snippet": map[string]any{
			"title":       req.Metadata.Title,
			"description": req.Metadata.Description,
			"tags":        req.Metadata.Tags,
			"categoryId":  t.cfg.CategoryID,
		},
		"status": map[string]any{
			"privacyStatus": req.Metadata.Privacy,
		},
	}
	body, err := json.Marshal(snippet)
	if err != nil {
		return PublishResult{}, fmt.Errorf("encoding video metadata: %w", err)
	}

	initURL := t.cfg.UploadURL + "?uploadType=resumable&part=snippet,status"
	initReq, err := http.NewRequestWithContext(ctx, http.MethodPost, initURL, bytes.NewReader(body))
	if err != nil {
		return PublishResult{}, fmt.Errorf("building upload init: %w", err)
	}
	initReq.Header.Set("Authorization", "Bearer "+req.Credentials.AccessToken)
	initReq.Header.Set("Content-Type", "application/json")

	initResp, err := t.deps.Client.Do(initReq)
	if err != nil {
		return PublishResult{}, fmt.Errorf("initiating youtube upload: %w", err)
	}
	defer initResp.Body.Close()

	if initResp.StatusCode != http.StatusOK {
		return PublishResult{}, fmt.Errorf("upload init returned status %d: %s", initResp.StatusCode, readErrorBody(initResp))
	}

	sessionURL := initResp.Header.Get("Location")
	if sessionURL == "" {
		return PublishResult{}, fmt.Errorf("upload init missing session location")
	}

	file, err := os.Open(req.Path)
	if err != nil {
		return PublishResult{}, fmt.Errorf("opening media file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return PublishResult{}, fmt.Errorf("stat media file: %w", err)
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, file)
	if err != nil {
		return PublishResult{}, fmt.Errorf("building upload request: %w", err)
	}
	putReq.ContentLength = info.Size()
	putReq.Header.Set("Content-Type", "video/mp4")

	resp, err := t.deps.Client.Do(putReq)
	if err != nil {
		return PublishResult{}, fmt.Errorf("uploading to youtube: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return PublishResult{}, fmt.Errorf("youtube upload returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var video struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return PublishResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if video.ID == "" {
		return PublishResult{}, fmt.Errorf("upload response missing video id")
	}

	return PublishResult{
		RemoteID:  video.ID,
		RemoteURL: "https://www.youtube.com/watch?v=" + video.ID,
	}, nil
}

func youtubeNativeID(rawURL string) (string, error) {
	m := youtubeIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("no video id in youtube url %q", rawURL)
	}
	return m[1], nil
}
