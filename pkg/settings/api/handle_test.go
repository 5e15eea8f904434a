package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-twofa/pkg/client"
	"github.com/tendant/simple-twofa/pkg/kvstore"
	"github.com/tendant/simple-twofa/pkg/settings"
)

func serve(h http.Handler, req *http.Request, account *client.AuthAccount) *httptest.ResponseRecorder {
	if account != nil {
		req = req.WithContext(client.WithAuthAccount(req.Context(), account))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSecuritySettingsRoutes(t *testing.T) {
	svc := settings.NewSettingsService(kvstore.NewInMemoryStore())
	router := Routes(NewHandle(svc))
	account := &client.AuthAccount{AccountID: uuid.New()}

	t.Run("get returns defaults", func(t *testing.T) {
		rec := serve(router, httptest.NewRequest(http.MethodGet, "/security", nil), account)
		require.Equal(t, http.StatusOK, rec.Code)

		var got settings.SecuritySettings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 8, got.PasswordPolicy.MinLength)
		assert.False(t, got.TwoFactorAuth.Enabled)
	})

	t.Run("put stores settings", func(t *testing.T) {
		body := `{"session":{"timeout_minutes":45,"max_sessions":3},"two_factor_auth":{"enabled":false,"methods":["sms","bogus"]}}`
		rec := serve(router, httptest.NewRequest(http.MethodPut, "/security", strings.NewReader(body)), account)
		require.Equal(t, http.StatusOK, rec.Code)

		got, err := svc.GetSecuritySettings(context.Background(), account.AccountID)
		require.NoError(t, err)
		assert.Equal(t, 45, got.Session.TimeoutMinutes)
		assert.Equal(t, []string{"sms"}, got.TwoFactorAuth.Methods)
	})

	t.Run("put rejects negative values", func(t *testing.T) {
		body := `{"session":{"max_sessions":-2}}`
		rec := serve(router, httptest.NewRequest(http.MethodPut, "/security", strings.NewReader(body)), account)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})

	t.Run("put rejects malformed body", func(t *testing.T) {
		rec := serve(router, httptest.NewRequest(http.MethodPut, "/security", strings.NewReader("{")), account)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing account", func(t *testing.T) {
		rec := serve(router, httptest.NewRequest(http.MethodGet, "/security", nil), nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
