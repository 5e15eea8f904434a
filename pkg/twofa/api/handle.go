package api

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/pquerna/otp"
	"github.com/tendant/simple-twofa/pkg/client"
	"github.com/tendant/simple-twofa/pkg/credential"
	errs "github.com/tendant/simple-twofa/pkg/errors"
	"github.com/tendant/simple-twofa/pkg/twofa"
)

const qrCodeSize = 256

type Handle struct {
	twoFaService twofa.TwoFactorService
	confirmer    *credential.Confirmer
	now          func() time.Time
}

type Option func(*Handle)

// WithConfirmer requires a matching confirmation token on disable
func WithConfirmer(c *credential.Confirmer) Option {
	return func(h *Handle) {
		h.confirmer = c
	}
}

// WithClock replaces time.Now when computing Retry-After
func WithClock(now func() time.Time) Option {
	return func(h *Handle) {
		h.now = now
	}
}

// NewHandle creates a new Handle
func NewHandle(twoFaService twofa.TwoFactorService, opts ...Option) *Handle {
	h := &Handle{
		twoFaService: twoFaService,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TwoFaHandler returns a http.Handler for the twofa API.
// Callers must run client.AuthAccountMiddleware first.
func TwoFaHandler(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Post("/setup", h.PostSetup)
	r.Post("/setup/verify", h.PostSetupVerify)
	r.Get("/qrcode.png", h.GetQRCode)
	r.Post("/verify", h.PostVerify)
	r.Post("/disable", h.PostDisable)
	r.Get("/status", h.GetStatus)
	r.Get("/backup-codes", h.GetBackupCodes)
	r.Post("/backup-codes/regenerate", h.PostRegenerateBackupCodes)

	return r
}

// Start a new enrollment
// (POST /setup)
func (h *Handle) PostSetup(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	var req SetupRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		renderError(w, r, errs.InvalidInput("body", "unable to parse body"))
		return
	}
	label := req.AccountLabel
	if label == "" {
		label = account.Label()
	}

	setup, err := h.twoFaService.BeginSetup(r.Context(), account.AccountID, label)
	if err != nil {
		slog.Error("Failed to begin 2FA setup", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	enrollmentEventsTotal.WithLabelValues("setup_started").Inc()

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, SetupResponse{
		Secret:      setup.Secret,
		QRPayload:   setup.QRPayload,
		BackupCodes: setup.BackupCodes,
	})
}

// Confirm the pending enrollment
// (POST /setup/verify)
func (h *Handle) PostSetupVerify(w http.ResponseWriter, r *http.Request) {
	account, req, ok := h.codeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.twoFaService.VerifySetup(r.Context(), account.AccountID, req.Code)
	verificationsTotal.WithLabelValues(endpointSetupVerify, resultLabel(err)).Inc()
	if err == nil {
		enrollmentEventsTotal.WithLabelValues("enabled").Inc()
	}
	h.renderVerification(w, r, result, err)
}

// Render the pending enrollment as a QR code
// (GET /qrcode.png)
func (h *Handle) GetQRCode(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	payload, err := h.twoFaService.PendingSetup(r.Context(), account.AccountID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	key, err := otp.NewKeyFromURL(payload.URL)
	if err != nil {
		slog.Error("Failed to parse provisioning url", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		slog.Error("Failed to render QR code", "account", account, "err", err)
		renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		slog.Error("Failed to write QR code", "account", account, "err", err)
	}
}

// Verify a code at login time
// (POST /verify)
func (h *Handle) PostVerify(w http.ResponseWriter, r *http.Request) {
	account, req, ok := h.codeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.twoFaService.Verify(r.Context(), account.AccountID, req.Code)
	verificationsTotal.WithLabelValues(endpointVerify, resultLabel(err)).Inc()
	if errors.Is(err, twofa.ErrAccountLocked) {
		lockoutsTotal.Inc()
	}
	h.renderVerification(w, r, result, err)
}

// Turn 2FA off
// (POST /disable)
func (h *Handle) PostDisable(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	var req DisableRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		renderError(w, r, errs.InvalidInput("body", "unable to parse body"))
		return
	}

	confirmed, err := h.confirmer.Confirm(req.ConfirmationToken)
	if err != nil {
		slog.Error("Failed to check confirmation token", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	if !confirmed {
		slog.Warn("Rejected 2FA disable with bad confirmation token", "account", account)
		renderError(w, r, errs.New(errs.ErrCodeForbidden, "invalid confirmation token"))
		return
	}

	if err := h.twoFaService.Disable(r.Context(), account.AccountID, req.ConfirmationToken); err != nil {
		slog.Error("Failed to disable 2FA", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	enrollmentEventsTotal.WithLabelValues("disabled").Inc()

	render.JSON(w, r, SuccessResponse{Status: "success", Message: "2FA disabled"})
}

// (GET /status)
func (h *Handle) GetStatus(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	status, err := h.twoFaService.Status(r.Context(), account.AccountID)
	if err != nil {
		slog.Error("Failed to load 2FA status", "account", account, "err", err)
		renderError(w, r, err)
		return
	}

	var resp StatusResponse
	if err := copier.Copy(&resp, &status); err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// (GET /backup-codes)
func (h *Handle) GetBackupCodes(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	codes, err := h.twoFaService.GetBackupCodes(r.Context(), account.AccountID)
	if err != nil {
		slog.Error("Failed to list backup codes", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, BackupCodesResponse{BackupCodes: codes, Count: len(codes)})
}

// (POST /backup-codes/regenerate)
func (h *Handle) PostRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return
	}

	codes, err := h.twoFaService.RegenerateBackupCodes(r.Context(), account.AccountID)
	if err != nil {
		slog.Error("Failed to regenerate backup codes", "account", account, "err", err)
		renderError(w, r, err)
		return
	}
	enrollmentEventsTotal.WithLabelValues("backup_codes_regenerated").Inc()
	render.JSON(w, r, BackupCodesResponse{BackupCodes: codes, Count: len(codes)})
}

func (h *Handle) codeRequest(w http.ResponseWriter, r *http.Request) (*client.AuthAccount, CodeRequest, bool) {
	var req CodeRequest
	account, ok := client.GetAuthAccount(r)
	if !ok {
		renderError(w, r, errs.Unauthorized("authentication required"))
		return nil, req, false
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, errs.InvalidInput("body", "unable to parse body"))
		return nil, req, false
	}
	if req.Code == "" {
		renderError(w, r, errs.InvalidInput("code", "required"))
		return nil, req, false
	}
	return account, req, true
}

// renderVerification writes the verification result. Verification failures keep
// the result body; anything else is rendered as an error.
func (h *Handle) renderVerification(w http.ResponseWriter, r *http.Request, result twofa.VerificationResult, err error) {
	resp := VerifyResponse{
		Success:           result.Success,
		Message:           result.Message,
		Method:            string(result.Method),
		RemainingAttempts: result.RemainingAttempts,
		LockedUntil:       result.LockedUntil,
	}
	if err == nil {
		render.JSON(w, r, resp)
		return
	}

	switch errs.GetCode(err) {
	case errs.ErrCodeAccountLocked:
		if result.LockedUntil != nil {
			seconds := int(math.Ceil(result.LockedUntil.Sub(h.now()).Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		}
	case errs.ErrCode2FAInvalid, errs.ErrCode2FANotEnabled, errs.ErrCode2FASetupNotFound:
	default:
		slog.Error("Verification failed", "err", err)
		renderError(w, r, err)
		return
	}
	render.Status(r, errs.MapErrorCodeToHTTPStatus(errs.GetCode(err)))
	render.JSON(w, r, resp)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	switch errs.GetCode(err) {
	case errs.ErrCode2FAInvalid:
		return "invalid"
	case errs.ErrCodeAccountLocked:
		return "locked"
	case errs.ErrCode2FANotEnabled:
		return "not_enabled"
	case errs.ErrCode2FASetupNotFound:
		return "setup_not_found"
	default:
		return "error"
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.GetCode(err)
	message := errs.GetMessage(err)
	if code == errs.ErrCodeInternal {
		message = "internal server error"
	}
	render.Status(r, errs.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, ErrorResponse{
		Error:   string(code),
		Message: message,
		Details: errs.GetDetails(err),
	})
}
