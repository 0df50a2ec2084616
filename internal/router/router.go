package router

import (
	"net/http"

	"github.com/BerylCAtieno/docmind-api/internal/config"
	"github.com/BerylCAtieno/docmind-api/internal/handlers"
	"github.com/BerylCAtieno/docmind-api/internal/middleware"
	"github.com/BerylCAtieno/docmind-api/internal/services"
	"github.com/BerylCAtieno/docmind-api/internal/utils"

	"github.com/gorilla/mux"
)

func NewRouter(sessionService services.SessionService, checkers map[string]handlers.HealthChecker, cfg *config.Config, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	sessionHandler := handlers.NewSessionHandler(sessionService, cfg.MaxFileSize, logger)

	// Routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", handlers.HealthHandler(checkers, logger)).Methods(http.MethodGet)

	// Session endpoints
	api.HandleFunc("/sessions", sessionHandler.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", sessionHandler.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessionHandler.DeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/preferences", sessionHandler.SetPreferences).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/document", sessionHandler.UploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/chat", sessionHandler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/reset", sessionHandler.ResetSession).Methods(http.MethodPost)

	return middleware.CORS(cfg.CORSAllowedOrigins)(r)
}
