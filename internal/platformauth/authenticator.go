package platformauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

// Credentials is what a transport needs to call a platform API on behalf of
// the configured account.
type Credentials struct {
	AccessToken string
	UserAgent   string
}

// Authenticator resolves fresh credentials for a platform. Implementations
// must be safe for concurrent use; the upload orchestrator calls Authenticate
// once per attempt.
type Authenticator interface {
	Authenticate(ctx context.Context, platform enums.Platform) (Credentials, error)
}

type httpAuthenticator struct {
	cfg    config.PlatformsConfig
	client *http.Client
	logg   *logger.Logger
}

// New wires the HTTP-backed authenticator.
func New(cfg config.PlatformsConfig, client *http.Client, logg *logger.Logger) (Authenticator, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &httpAuthenticator{cfg: cfg, client: client, logg: logg}, nil
}

func (a *httpAuthenticator) Authenticate(ctx context.Context, platform enums.Platform) (Credentials, error) {
	if !platform.IsValid() {
		return Credentials{}, fmt.Errorf("invalid platform %q", platform)
	}

	switch platform {
	case enums.PlatformYouTube:
		return a.youtube()
	case enums.PlatformTikTok:
		return a.tiktok()
	case enums.PlatformFacebook:
		return a.verifyGraphToken(ctx, platform, a.cfg.Facebook.GraphAPIURL, a.cfg.Facebook.AccessToken)
	case enums.PlatformInstagram:
		return a.verifyGraphToken(ctx, platform, a.cfg.Instagram.GraphAPIURL, a.cfg.Instagram.AccessToken)
	case enums.PlatformDailymotion:
		return a.dailymotion(ctx)
	default:
		return Credentials{}, fmt.Errorf("no authenticator for platform %q", platform)
	}
}

func (a *httpAuthenticator) youtube() (Credentials, error) {
	token := strings.TrimSpace(a.cfg.YouTube.AccessToken)
	if token == "" {
		return Credentials{}, fmt.Errorf("youtube access token not configured")
	}
	return Credentials{AccessToken: token}, nil
}

// TikTok publishing rides on a device-style user agent rather than OAuth.
func (a *httpAuthenticator) tiktok() (Credentials, error) {
	ua := strings.TrimSpace(a.cfg.TikTok.UserAgent)
	if ua == "" {
		return Credentials{}, fmt.Errorf("tiktok user agent not configured")
	}
	return Credentials{UserAgent: ua}, nil
}

// verifyGraphToken checks the configured token against the Graph API /me
// endpoint so a revoked token fails fast instead of mid-upload.
func (a *httpAuthenticator) verifyGraphToken(ctx context.Context, platform enums.Platform, baseURL, token string) (Credentials, error) {
	if strings.TrimSpace(token) == "" {
		return Credentials{}, fmt.Errorf("%s access token not configured", platform)
	}

	endpoint := fmt.Sprintf("%s/me?fields=id&access_token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("building %s token check: %w", platform, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s token check: %w", platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Credentials{}, fmt.Errorf("%s token rejected (status %d): %s", platform, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return Credentials{AccessToken: token}, nil
}

func (a *httpAuthenticator) dailymotion(ctx context.Context) (Credentials, error) {
	cfg := a.cfg.Dailymotion
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.Email == "" || cfg.Password == "" {
		return Credentials{}, fmt.Errorf("dailymotion credentials not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("username", cfg.Email)
	form.Set("password", cfg.Password)
	form.Set("scope", "manage_videos")

	endpoint := strings.TrimRight(cfg.APIBaseURL, "/") + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Credentials{}, fmt.Errorf("building dailymotion token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("dailymotion token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Credentials{}, fmt.Errorf("dailymotion token rejected (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credentials{}, fmt.Errorf("decoding dailymotion token response: %w", err)
	}
	if payload.AccessToken == "" {
		return Credentials{}, fmt.Errorf("dailymotion token response missing access_token")
	}

	a.logg.Info(a.logg.WithPlatform(ctx, string(enums.PlatformDailymotion)), "platform token refreshed")
	return Credentials{AccessToken: payload.AccessToken}, nil
}
