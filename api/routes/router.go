package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidrelay/vidrelay-backend/api/controllers"
	"github.com/vidrelay/vidrelay-backend/api/middleware"
	"github.com/vidrelay/vidrelay-backend/internal/download"
	"github.com/vidrelay/vidrelay-backend/internal/editing"
	"github.com/vidrelay/vidrelay-backend/internal/events"
	"github.com/vidrelay/vidrelay-backend/internal/ledger"
	"github.com/vidrelay/vidrelay-backend/internal/selection"
	"github.com/vidrelay/vidrelay-backend/internal/upload"
	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
	"github.com/vidrelay/vidrelay-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. Optional entries (publisher,
// pubsub pinger) may be nil.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Redis        *redis.Client
	DBPinger     controllers.Pinger
	PubSubPinger controllers.Pinger

	Media      download.Service
	Editor     editing.Editor
	Selections *selection.Store
	Uploader   upload.Orchestrator
	Ledger     ledger.Service
	Publisher  events.Publisher
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":     deps.DBPinger,
			"redis":  redisPinger(deps.Redis),
			"pubsub": deps.PubSubPinger,
		}))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	downloadPolicy := middleware.DownloadRateLimitPolicy(cfg.RateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore(deps.Redis), logg))

		r.Post("/resolve", controllers.Resolve(deps.Publisher, logg))

		r.With(middleware.RateLimit(downloadPolicy, rateLimitStore(deps.Redis), logg)).
			Post("/transfers", controllers.TransferCreate(deps.Media, logg))

		r.Route("/media", func(r chi.Router) {
			r.Get("/", controllers.MediaList(deps.Media, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.MediaGet(deps.Media, logg))
				r.Post("/edits", controllers.EditCreate(deps.Media, deps.Editor, logg))
				r.Route("/selection", func(r chi.Router) {
					r.Get("/", controllers.SelectionGet(deps.Media, deps.Selections, logg))
					r.Post("/", controllers.SelectionBegin(deps.Media, deps.Selections, logg))
					r.Post("/toggle", controllers.SelectionToggle(deps.Media, deps.Selections, deps.Publisher, logg))
				})
				r.Post("/upload", controllers.UploadCreate(deps.Uploader, logg))
			})
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/platforms", controllers.StatsPlatforms(deps.Ledger, logg))
			r.Get("/me", controllers.StatsMe(deps.Ledger, logg))
		})
	})

	return r
}

// The helpers below keep a nil *redis.Client from turning into non-nil
// interface values inside the middleware.

func redisPinger(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}

func idempotencyStore(client *redis.Client) redis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}

func rateLimitStore(client *redis.Client) middleware.RateLimiterStore {
	if client == nil {
		return nil
	}
	return client
}
