package api

import (
	"net/http"

	"github.com/hearkenhq/hearken/internal/auth"
	"github.com/hearkenhq/hearken/internal/connector"
	"log/slog"
)

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, registry *connector.Registry, store connector.ConfigStore, authConfig auth.Config, logger *slog.Logger) {
	connectorHandler := NewConnectorHandler(registry, store, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	// Auth middleware
	authMiddleware := auth.AuthMiddleware(authConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Connector routes (admin only; connector configs reference credentials)
	mux.HandleFunc("/api/connectors", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			preflight(w, "GET, POST, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(connectorHandler.HandleConnectors)).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/connectors/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/connectors/" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			preflight(w, "GET, POST, PUT, DELETE, OPTIONS")
			return
		}
		authMiddleware(http.HandlerFunc(connectorHandler.HandleConnectorByID)).ServeHTTP(w, r)
	})

	// CORS preflight fallback
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			preflight(w, "GET, POST, PUT, DELETE, OPTIONS")
			return
		}
		http.NotFound(w, r)
	})
}

func preflight(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}
