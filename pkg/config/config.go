package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Download     DownloadConfig
	Upload       UploadConfig
	Editing      EditingConfig
	Ledger       LedgerConfig
	Platforms    PlatformsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VIDRELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"VIDRELAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VIDRELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VIDRELAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VIDRELAY_DB_DSN"`
	Driver string `envconfig:"VIDRELAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VIDRELAY_DB_HOST"`
	LegacyPort     int    `envconfig:"VIDRELAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VIDRELAY_DB_USER"`
	LegacyPassword string `envconfig:"VIDRELAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"VIDRELAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"VIDRELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VIDRELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VIDRELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VIDRELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VIDRELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VIDRELAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VIDRELAY_REDIS_ADDR"`
	Password     string        `envconfig:"VIDRELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"VIDRELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VIDRELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VIDRELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VIDRELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VIDRELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VIDRELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VIDRELAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VIDRELAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VIDRELAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	DownloadWindow    time.Duration `envconfig:"VIDRELAY_RATE_LIMIT_DOWNLOAD_WINDOW" default:"1m"`
	DownloadUserLimit int           `envconfig:"VIDRELAY_RATE_LIMIT_DOWNLOAD_USER_LIMIT" default:"5"`
	DownloadIPLimit   int           `envconfig:"VIDRELAY_RATE_LIMIT_DOWNLOAD_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VIDRELAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VIDRELAY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VIDRELAY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VIDRELAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VIDRELAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FrontendTopic string `envconfig:"VIDRELAY_PUBSUB_FRONTEND_TOPIC"`
}

// Enabled reports whether the front-end event feed is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.FrontendTopic) != ""
}

type DownloadConfig struct {
	Dir          string        `envconfig:"VIDRELAY_DOWNLOAD_DIR" default:"downloads"`
	MaxFileBytes int64         `envconfig:"VIDRELAY_DOWNLOAD_MAX_FILE_BYTES" default:"52428800"`
	FetchTimeout time.Duration `envconfig:"VIDRELAY_DOWNLOAD_FETCH_TIMEOUT" default:"5m"`
}

type UploadConfig struct {
	MaxRetries int           `envconfig:"VIDRELAY_UPLOAD_MAX_RETRIES" default:"3"`
	RetryDelay time.Duration `envconfig:"VIDRELAY_UPLOAD_RETRY_DELAY" default:"5s"`
	Timeout    time.Duration `envconfig:"VIDRELAY_UPLOAD_TIMEOUT" default:"10m"`
}

type EditingConfig struct {
	FFmpegPath  string        `envconfig:"VIDRELAY_FFMPEG_PATH" default:"ffmpeg"`
	Timeout     time.Duration `envconfig:"VIDRELAY_EDIT_TIMEOUT" default:"10m"`
	MaxDuration time.Duration `envconfig:"VIDRELAY_EDIT_MAX_DURATION" default:"10m"`
}

type LedgerConfig struct {
	AuditLogPath  string `envconfig:"VIDRELAY_LEDGER_AUDIT_LOG" default:"data/analytics/audit.log"`
	AuditMaxSize  int    `envconfig:"VIDRELAY_LEDGER_AUDIT_MAX_SIZE_MB" default:"5"`
	AuditMaxFiles int    `envconfig:"VIDRELAY_LEDGER_AUDIT_MAX_FILES" default:"5"`
}

// PlatformsConfig carries the per-platform credential bundles handed to the
// authentication collaborator. Empty bundles disable the platform for publish.
type PlatformsConfig struct {
	YouTube     YouTubeConfig
	TikTok      TikTokConfig
	Facebook    FacebookConfig
	Dailymotion DailymotionConfig
	Instagram   InstagramConfig
}

type YouTubeConfig struct {
	AccessToken string `envconfig:"VIDRELAY_YOUTUBE_ACCESS_TOKEN"`
	UploadURL   string `envconfig:"VIDRELAY_YOUTUBE_UPLOAD_URL" default:"https://www.googleapis.com/upload/youtube/v3/videos"`
	ResolveURL  string `envconfig:"VIDRELAY_YOUTUBE_RESOLVE_URL" default:"https://www.youtube.com/youtubei/v1/player"`
	CategoryID  string `envconfig:"VIDRELAY_YOUTUBE_CATEGORY_ID" default:"22"`
}

type TikTokConfig struct {
	APIBaseURL string `envconfig:"VIDRELAY_TIKTOK_API_BASE_URL" default:"https://api16-normal-c-useast1a.tiktokv.com"`
	UserAgent  string `envconfig:"VIDRELAY_TIKTOK_USER_AGENT" default:"TikTok 26.2.0 rv:262018 (iPhone; iOS 14.4.2; en_US) Cronet"`
}

type FacebookConfig struct {
	AccessToken string `envconfig:"VIDRELAY_FACEBOOK_ACCESS_TOKEN"`
	GraphAPIURL string `envconfig:"VIDRELAY_FACEBOOK_GRAPH_API_URL" default:"https://graph.facebook.com/v12.0"`
}

type DailymotionConfig struct {
	Email        string `envconfig:"VIDRELAY_DAILYMOTION_EMAIL"`
	Password     string `envconfig:"VIDRELAY_DAILYMOTION_PASSWORD"`
	ClientID     string `envconfig:"VIDRELAY_DAILYMOTION_CLIENT_ID"`
	ClientSecret string `envconfig:"VIDRELAY_DAILYMOTION_CLIENT_SECRET"`
	APIBaseURL   string `envconfig:"VIDRELAY_DAILYMOTION_API_BASE_URL" default:"https://api.dailymotion.com"`
	PlayerURL    string `envconfig:"VIDRELAY_DAILYMOTION_PLAYER_URL" default:"https://www.dailymotion.com"`
}

type InstagramConfig struct {
	AccessToken string `envconfig:"VIDRELAY_INSTAGRAM_ACCESS_TOKEN"`
	GraphAPIURL string `envconfig:"VIDRELAY_INSTAGRAM_GRAPH_API_URL" default:"https://graph.instagram.com/v12.0"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
