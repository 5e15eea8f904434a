package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-twofa/pkg/client"
	errs "github.com/tendant/simple-twofa/pkg/errors"
	"github.com/tendant/simple-twofa/pkg/settings"
)

// SettingsStore is the part of settings.SettingsService the handler needs
type SettingsStore interface {
	GetSecuritySettings(ctx context.Context, accountID uuid.UUID) (settings.SecuritySettings, error)
	SaveSecuritySettings(ctx context.Context, accountID uuid.UUID, s settings.SecuritySettings) (settings.SecuritySettings, error)
}

type Handle struct {
	settings SettingsStore
}

func NewHandle(store SettingsStore) *Handle {
	return &Handle{settings: store}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Routes mounts the settings endpoints. Callers must run client.AuthAccountMiddleware first.
func Routes(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/security", h.GetSecurity)
	r.Put("/security", h.PutSecurity)
	return r
}

// GetSecurity returns the caller's security settings
// (GET /security)
func (h *Handle) GetSecurity(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	result, err := h.settings.GetSecuritySettings(r.Context(), account.AccountID)
	if err != nil {
		slog.Error("Failed to load security settings", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// PutSecurity replaces the caller's security settings
// (PUT /security)
func (h *Handle) PutSecurity(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	var body settings.SecuritySettings
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		renderError(w, r, errs.InvalidInput("body", "unable to parse body"))
		return
	}

	saved, err := h.settings.SaveSecuritySettings(r.Context(), account.AccountID, body)
	if err != nil {
		slog.Error("Failed to save security settings", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, saved)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.GetCode(err)
	render.Status(r, errs.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{Error: string(code), Message: errs.GetMessage(err)})
}
