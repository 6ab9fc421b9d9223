package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sorvik/glossa/internal/config"
	"github.com/sorvik/glossa/internal/storage/sqlite"
	"github.com/sorvik/glossa/internal/websocket"
	"github.com/sorvik/glossa/pkg/logger"
)

// Router wires the API handlers into an HTTP mux
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(status StatusProvider, recordings *sqlite.RecordingStorage, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler: NewHandler(status, recordings, cfg, log, wsServer),
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the HTTP handler for all API routes
func (r *Router) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(r.requestLogger)

	mux.Route("/api/v1", func(api chi.Router) {
		api.Get("/status", r.handler.GetStatus)
		api.Get("/recordings", r.handler.GetRecordings)
	})

	mux.Get("/ws", r.handler.HandleWebSocket)

	// Caption page and assets
	static := NewStaticFileHandler(r.config.Server.StaticFilesDir, r.logger)
	mux.Handle("/*", static)

	return mux
}

// requestLogger logs each request at debug level
func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		r.logger.Debug("Handled request",
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Duration("duration", time.Since(start)))
	})
}
