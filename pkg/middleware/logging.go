package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"spendhub-backend/pkg/config"
)

// userCapture is installed by the logger before the auth middleware runs.
// The auth middleware fills it in, since the derived context it hands the
// handler chain is invisible to the outer logger after ServeHTTP returns.
type userCapture struct {
	email string
}

type userCaptureKey struct{}

// Logger returns the request logging middleware. Development gets chi's
// colored logger; production gets one structured line per request.
func Logger(cfg *config.Config) func(http.Handler) http.Handler {
	if cfg.IsDevelopment() {
		return middleware.Logger
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			uc := &userCapture{}
			r = r.WithContext(context.WithValue(r.Context(), userCaptureKey{}, uc))

			next.ServeHTTP(ww, r)

			userInfo := "anonymous"
			if uc.email != "" {
				userInfo = uc.email
			}

			fmt.Printf(`{"time":"%s","method":"%s","path":"%s","status":%d,"duration":"%s","user":"%s","ip":"%s"}`+"\n",
				time.Now().Format(time.RFC3339),
				r.Method,
				r.URL.Path,
				ww.Status(),
				time.Since(start),
				userInfo,
				GetClientIP(r),
			)
		})
	}
}

// GetClientIP returns the originating client address, honoring proxy headers
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
