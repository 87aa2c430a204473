package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"spendhub-backend/pkg/config"
)

// CORS builds the cross-origin middleware from the configured origins
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}

	// Wildcard origins cannot be combined with credentials
	if cfg.IsDevelopment() || (len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] == "*") {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	return cors.Handler(corsOptions)
}
