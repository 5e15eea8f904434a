package client

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	errs "github.com/tendant/simple-twofa/pkg/errors"
)

// RequireAuth rejects requests that AuthAccountMiddleware did not resolve to an account
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetAuthAccount(r); !ok {
			slog.Debug("Unauthenticated request", "path", r.URL.Path)
			err := errs.Unauthorized("authentication required")
			render.Status(r, err.HTTPStatusCode())
			render.JSON(w, r, map[string]string{
				"error":   string(err.Code),
				"message": err.Message,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
