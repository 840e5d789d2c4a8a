package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/finsight/quorum/internal/api/handlers"
	mw "github.com/finsight/quorum/internal/api/middleware"
	"github.com/finsight/quorum/internal/cache"
	"github.com/finsight/quorum/internal/config"
	"github.com/finsight/quorum/internal/domain"
	"github.com/finsight/quorum/internal/service"
	"github.com/finsight/quorum/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the router and in-process counters for the metrics endpoint.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db store.DB, logger *zap.Logger) *App {
	// Stores
	scraperStore := store.NewScraperStore(db)
	profileStore := store.NewProfileStore(db)
	auditStore := store.NewAuditStore(db)
	crossValStore := store.NewCrossValidationStore(db)

	sourceCache := cache.New(config.CacheMaxEntries(), config.CacheTTL())

	// Services
	audit := service.NewAuditRecorder(auditStore, logger)
	orchestratorSvc := service.NewOrchestratorService(scraperStore, sourceCache, audit, logger)
	profileSvc := service.NewProfileService(profileStore, scraperStore, sourceCache, audit, logger)
	crossValSvc := service.NewCrossValidationService(crossValStore, audit, logger)

	// Handlers
	scraperHandler := handlers.NewScraperHandler(orchestratorSvc)
	profileHandler := handlers.NewProfileHandler(profileSvc)
	crossValHandler := handlers.NewCrossValHandler(crossValSvc)
	consensusHandler := handlers.NewConsensusHandler(crossValSvc)
	auditHandler := handlers.NewAuditHandler(auditStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated admin surface
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.AdminAPIKey()))

		// Scraper configs
		r.Route("/scrapers", func(r chi.Router) {
			r.Get("/", scraperHandler.List)
			r.Post("/", scraperHandler.Create)
			r.Get("/enabled", scraperHandler.Enabled)
			r.Put("/priorities", scraperHandler.UpdatePriorities)
			r.Post("/bulk-toggle", scraperHandler.BulkToggle)
			r.Post("/impact", scraperHandler.PreviewImpact)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", scraperHandler.Get)
				r.Patch("/", scraperHandler.Update)
				r.Post("/toggle", scraperHandler.Toggle)
			})
		})

		// Execution profiles
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", profileHandler.List)
			r.Post("/", profileHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", profileHandler.Get)
				r.Put("/", profileHandler.Update)
				r.Delete("/", profileHandler.Delete)
				r.Post("/apply", profileHandler.Apply)
			})
		})

		// Cross-validation engine
		r.Route("/cross-validation", func(r chi.Router) {
			r.Get("/", crossValHandler.Get)
			r.Put("/", crossValHandler.Update)
		})
		r.Post("/consensus", consensusHandler.Compute)

		// Audit trail
		r.Get("/audit", auditHandler.List)
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db store.DB, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy the domain interfaces at compile time.
var (
	_ domain.ScraperStore         = (*store.ScraperStore)(nil)
	_ domain.ProfileStore         = (*store.ProfileStore)(nil)
	_ domain.AuditStore           = (*store.AuditStore)(nil)
	_ domain.CrossValidationStore = (*store.CrossValidationStore)(nil)
)
