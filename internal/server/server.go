package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/neboman11/any-player-sync-server/internal/config"
	"github.com/neboman11/any-player-sync-server/internal/document"
	"github.com/neboman11/any-player-sync-server/internal/notify"
	"github.com/neboman11/any-player-sync-server/internal/ws"
)

// ServiceName is reported by the liveness probe.
const ServiceName = "any-player-sync-server"

type Server struct {
	store       document.Store
	broadcaster *notify.Broadcaster
	config      *config.Config
	logger      *zap.Logger
}

func NewServer(store document.Store, broadcaster *notify.Broadcaster, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		store:       store,
		broadcaster: broadcaster,
		config:      cfg,
		logger:      logger,
	}
}

func NewRouter(server *Server, logger *zap.Logger) http.Handler {
	allowed := server.config.Server.CORSAllowedOrigins
	if len(allowed) == 0 {
		logger.Warn("cors_allowed_origins is not set, all origins are permitted; " +
			"set SYNC_SERVER_CORS_ALLOWED_ORIGINS to a list of allowed origins in production")
	}

	wsHandler := ws.NewHandler(server.broadcaster, originChecker(allowed), logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware(allowed))
	r.Use(zapLoggerMiddleware(logger))

	r.Get("/health", server.handleHealth)

	r.Route("/v1", func(v1 chi.Router) {
		// The websocket upgrade reads no body; the limit applies to writes.
		v1.With(bodyLimitMiddleware(server.config.Server.MaxBodySize)).Group(func(api chi.Router) {
			api.Get("/snapshot", server.handleGetSnapshot)
			api.Put("/snapshot", server.handlePutSnapshot)
			api.Get("/state/{namespace}", server.handleGetNamespace)
			api.Put("/state/{namespace}", server.handlePutNamespace)
		})
		v1.Get("/ws", wsHandler.ServeHTTP)
	})

	return r
}

// originChecker gates websocket upgrades with the same origin policy the CORS
// layer applies. Requests without an Origin header (non-browser clients) are
// always allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(set) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := set[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
			)
			next.ServeHTTP(w, r)
		})
	}
}
