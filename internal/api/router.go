package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/flight-tracker/internal/config"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Router builds the HTTP routes
type Router struct {
	handler   *Handler
	websocket http.Handler
	config    *config.Config
	logger    *logger.Logger
}

// NewRouter creates a new router. ws serves the WebSocket upgrade at /ws.
func NewRouter(services Services, ws http.Handler, cfg *config.Config, version string, log *logger.Logger) *Router {
	return &Router{
		handler:   NewHandler(services, cfg, version, log),
		websocket: ws,
		config:    cfg,
		logger:    log.Named("api-router"),
	}
}

// Routes returns the router with all routes registered
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(r.requestLogger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Route("/api/v1", func(api chi.Router) {
		if limit := r.config.Server.RateLimitPerMinute; limit > 0 {
			api.Use(httprate.LimitByIP(limit, time.Minute))
		}

		api.Get("/health", r.handler.GetHealth)
		api.Get("/config", r.handler.GetConfig)
		api.Get("/flights/{flightNumber}", r.handler.GetFlight)
		api.Get("/weather/{icao}", r.handler.GetWeather)
		api.Get("/photos/{registration}", r.handler.GetPhoto)
		api.Get("/queue", r.handler.GetQueue)
	})

	if r.websocket != nil {
		router.Handle("/ws", r.websocket)
	}

	if r.config.Metrics.Enabled {
		router.Handle(r.config.Metrics.Path, promhttp.Handler())
	}

	router.Handle("/*", NewStaticFileHandler(r.config.Server.StaticFilesDir, r.logger))

	return router
}

// requestLogger logs each request at debug level
func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		r.logger.Debug("HTTP request",
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(req.Context())))
	})
}
