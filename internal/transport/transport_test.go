package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/vidrelay/vidrelay-backend/internal/platformauth"
	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

func testDeps(client *http.Client, platforms config.PlatformsConfig) Deps {
	return Deps{
		Client:    client,
		Platforms: platforms,
		Logger:    logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard}),
	}
}

func TestForPlatformCoversEverySupportedPlatform(t *testing.T) {
	deps := testDeps(http.DefaultClient, config.PlatformsConfig{})
	for _, platform := range enums.Platforms() {
		tr, err := ForPlatform(platform, deps)
		if err != nil {
			t.Fatalf("ForPlatform(%s): %v", platform, err)
		}
		if tr.Platform() != platform {
			t.Fatalf("transport for %s reports %s", platform, tr.Platform())
		}
	}
}

func TestForPlatformRejectsUnknown(t *testing.T) {
	if _, err := ForPlatform(enums.Platform("vimeo"), testDeps(http.DefaultClient, config.PlatformsConfig{})); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestFileNameIsDeterministic(t *testing.T) {
	got := FileName(enums.PlatformYouTube, "abc123xyz99")
	if got != "youtube_abc123xyz99.mp4" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestNativeIDExtraction(t *testing.T) {
	cases := []struct {
		name string
		fn   func(string) (string, error)
		url  string
		want string
	}{
		{"youtube watch", youtubeNativeID, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"youtube short link", youtubeNativeID, "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"youtube shorts", youtubeNativeID, "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"tiktok", tiktokNativeID, "https://www.tiktok.com/@user/video/7123456789012345678", "7123456789012345678"},
		{"facebook videos path", facebookNativeID, "https://www.facebook.com/user/videos/1122334455/", "1122334455"},
		{"facebook watch param", facebookNativeID, "https://www.facebook.com/watch/?v=1122334455", "1122334455"},
		{"facebook short link", facebookNativeID, "https://fb.watch/aBcD123/", "aBcD123"},
		{"dailymotion", dailymotionNativeID, "https://www.dailymotion.com/video/x8abcd", "x8abcd"},
		{"dailymotion short link", dailymotionNativeID, "https://dai.ly/x8abcd", "x8abcd"},
		{"instagram reel", instagramNativeID, "https://www.instagram.com/reel/Cabc123_-x/", "Cabc123_-x"},
		{"instagram post", instagramNativeID, "https://www.instagram.com/p/Cabc123/", "Cabc123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fn(tc.url)
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNativeIDExtractionRejectsForeignURL(t *testing.T) {
	if _, err := youtubeNativeID("https://example.com/video/123"); err == nil {
		t.Fatal("expected error for non-youtube url")
	}
	if _, err := tiktokNativeID("https://www.tiktok.com/@user"); err == nil {
		t.Fatal("expected error for profile url")
	}
}

func TestStreamToFileEnforcesSizeCap(t *testing.T) {
	payload := strings.Repeat("x", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "capped.mp4")
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	_, err = streamToFile(context.Background(), server.Client(), req, dest, 512)
	if err != ErrFileTooLarge {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}

	// The oversize partial stays on disk for inspection.
	info, statErr := os.Stat(dest)
	if statErr != nil {
		t.Fatalf("expected partial file on disk, got %v", statErr)
	}
	if info.Size() == 0 {
		t.Fatal("expected partial file to contain the streamed bytes")
	}
}

func TestStreamToFileWritesWithinCap(t *testing.T) {
	payload := strings.Repeat("y", 256)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "ok.mp4")
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	size, err := streamToFile(context.Background(), server.Client(), req, dest, 512)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", size, len(payload))
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != payload {
		t.Fatal("file content mismatch")
	}
}

func TestDailymotionFetchResolvesQuality(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/player/metadata/video/"):
			_, _ = w.Write([]byte(`{"qualities":{"720":[{"type":"video/mp4","url":"` + server.URL + `/stream.mp4"}]}}`))
		case r.URL.Path == "/stream.mp4":
			_, _ = w.Write([]byte("mp4-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	deps := testDeps(server.Client(), config.PlatformsConfig{
		Dailymotion: config.DailymotionConfig{PlayerURL: server.URL, APIBaseURL: server.URL},
	})
	tr, err := ForPlatform(enums.PlatformDailymotion, deps)
	if err != nil {
		t.Fatalf("ForPlatform: %v", err)
	}

	result, err := tr.Fetch(context.Background(), FetchRequest{
		URL:      "https://www.dailymotion.com/video/x8abcd",
		Quality:  enums.Quality720p,
		DestDir:  t.TempDir(),
		MaxBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.NativeID != "x8abcd" {
		t.Fatalf("native id = %q", result.NativeID)
	}
	if filepath.Base(result.Path) != "dailymotion_x8abcd.mp4" {
		t.Fatalf("path = %q", result.Path)
	}
	if result.SizeBytes != int64(len("mp4-bytes")) {
		t.Fatalf("size = %d", result.SizeBytes)
	}
}

func TestFacebookPublishSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/videos" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("access_token"); got != "fb-token" {
			t.Errorf("access_token = %q", got)
		}
		if got := r.FormValue("description"); got != "a description" {
			t.Errorf("description = %q", got)
		}
		if _, _, err := r.FormFile("source"); err != nil {
			t.Errorf("missing source file: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"987654"}`))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "facebook_1.mp4")
	if err := os.WriteFile(path, []byte("mp4-bytes"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	deps := testDeps(server.Client(), config.PlatformsConfig{
		Facebook: config.FacebookConfig{GraphAPIURL: server.URL},
	})
	tr, err := ForPlatform(enums.PlatformFacebook, deps)
	if err != nil {
		t.Fatalf("ForPlatform: %v", err)
	}

	result, err := tr.Publish(context.Background(), PublishRequest{
		Path: path,
		Metadata: Metadata{
			Title:       "a title",
			Description: "a description",
		},
		Credentials: platformauth.Credentials{AccessToken: "fb-token"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.RemoteID != "987654" {
		t.Fatalf("remote id = %q", result.RemoteID)
	}
}
