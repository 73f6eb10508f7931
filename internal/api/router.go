package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/vnvalue/internal/api/handlers"
	"github.com/wonny/vnvalue/pkg/logger"
)

// Handlers bundles every HTTP handler the router mounts
type Handlers struct {
	Session     *handlers.SessionHandler
	Report      *handlers.ReportHandler
	Preferences *handlers.PreferenceHandler
	Engine      *handlers.EngineHandler
	Hub         *handlers.SnapshotHub
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: all routes are declared here
func NewRouter(h Handlers, corsOrigin string, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Snapshot stream
	r.HandleFunc("/ws", h.Hub.ServeWS).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Session
	api.HandleFunc("/session", h.Session.Get).Methods("GET")
	api.HandleFunc("/session/load", h.Session.Load).Methods("POST")
	api.HandleFunc("/session/calculate", h.Session.Calculate).Methods("POST")
	api.HandleFunc("/session/weights/normalize", h.Session.NormalizeWeights).Methods("POST")
	api.HandleFunc("/session/weights/{model}", h.Session.SetWeight).Methods("PUT")
	api.HandleFunc("/session/assumptions", h.Session.SetAssumptions).Methods("PUT")

	// Reports
	api.HandleFunc("/session/report", h.Report.Report).Methods("GET")
	api.HandleFunc("/session/charts/{kind:[a-z]+}.png", h.Report.Chart).Methods("GET")

	// Preferences
	api.HandleFunc("/preferences/theme", h.Preferences.GetTheme).Methods("GET")
	api.HandleFunc("/preferences/theme", h.Preferences.SetTheme).Methods("PUT")
	api.HandleFunc("/preferences/theme/toggle", h.Preferences.ToggleTheme).Methods("POST")

	// Engine
	api.HandleFunc("/engine/health", h.Engine.Health).Methods("GET")

	// Preflight requests carry no route method; answer them in the CORS layer
	api.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	r.Use(corsMiddleware(corsOrigin))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "vnvalue",
	})
}

// statusRecorder captures the status code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// the upgrader needs the raw writer for hijacking
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware allows the browser front end to call the API
func corsMiddleware(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
