package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
)

var (
	facebookIDRe = regexp.MustCompile(`(?:/videos/|[?&]v=)(\d+)`)

	// The watch page embeds the progressive sources as JSON-escaped URLs.
	facebookHDSrcRe = regexp.MustCompile(`"(?:browser_native_hd_url|hd_src)"\s*:\s*"([^"]+)"`)
	facebookSDSrcRe = regexp.MustCompile(`"(?:browser_native_sd_url|sd_src)"\s*:\s*"([^"]+)"`)
)

type facebookTransport struct {
	deps Deps
	cfg  config.FacebookConfig
}

func (t *facebookTransport) Platform() enums.Platform { return enums.PlatformFacebook }

func (t *facebookTransport) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	nativeID, err := facebookNativeID(req.URL)
	if err != nil {
		return FetchResult{}, err
	}

	streamURL, err := t.scrapeStreamURL(ctx, req.URL, req.Quality)
	if err != nil {
		return FetchResult{}, err
	}

	destPath := filepath.Join(req.DestDir, FileName(enums.PlatformFacebook, nativeID))
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

// scrapeStreamURL pulls the watch page and extracts the embedded mp4 source.
// HD is preferred unless the caller asked for 720p and only SD exists.
func (t *facebookTransport) scrapeStreamURL(ctx context.Context, pageURL string, quality enums.Quality) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := t.deps.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("reading watch page: %w", err)
	}

	page := string(body)
	candidates := []*regexp.Regexp{facebookHDSrcRe, facebookSDSrcRe}
	if quality == enums.Quality720p {
		candidates = []*regexp.Regexp{facebookSDSrcRe, facebookHDSrcRe}
	}
	for _, re := range candidates {
		if m := re.FindStringSubmatch(page); m != nil {
			return unescapeJSONURL(m[1]), nil
		}
	}
	return "", fmt.Errorf("no video source found on watch page")
}

func (t *facebookTransport) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	endpoint := fmt.Sprintf("%s/me/videos", strings.TrimRight(t.cfg.GraphAPIURL, "/"))
	resp, err := uploadFileField(ctx, t.deps.Client, endpoint, "source", req.Path,
		map[string]string{
			"title":        req.Metadata.Title,
			"description":  req.Metadata.Description,
			"access_token": req.Credentials.AccessToken,
		}, nil)
	if err != nil {
		return PublishResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PublishResult{}, fmt.Errorf("facebook upload returned status %d: %s", resp.StatusCode, readErrorBody(resp))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return PublishResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if created.ID == "" {
		return PublishResult{}, fmt.Errorf("upload response missing video id")
	}

	return PublishResult{
		RemoteID:  created.ID,
		RemoteURL: "https://www.facebook.com/watch/?v=" + created.ID,
	}, nil
}

func facebookNativeID(rawURL string) (string, error) {
	if m := facebookIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	// fb.watch short links carry an opaque slug as the last path segment
	if strings.Contains(rawURL, "fb.watch") {
		slug := strings.Trim(path.Base(strings.SplitN(rawURL, "?", 2)[0]), "/")
		if slug != "" && slug != "fb.watch" {
			return slug, nil
		}
	}
	return "", fmt.Errorf("no video id in facebook url %q", rawURL)
}

func unescapeJSONURL(raw string) string {
	replaced := strings.ReplaceAll(raw, `\/`, `/`)
	replaced = strings.ReplaceAll(replaced, `\u0025`, "%")
	replaced = strings.ReplaceAll(replaced, `\u0026`, "&")
	return replaced
}
