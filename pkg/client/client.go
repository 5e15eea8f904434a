package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

type ExtraClaims struct {
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// AuthAccount is the authenticated caller. AccountID comes from the JWT "sub" claim.
type AuthAccount struct {
	AccountID   uuid.UUID
	ExtraClaims ExtraClaims `json:"extra_claims,omitempty"`
}

func (a AuthAccount) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account_id", a.AccountID.String()),
		slog.Any("roles", a.ExtraClaims.Roles),
	)
}

// Label returns a human readable name for the account, used as the
// authenticator app label
func (a AuthAccount) Label() string {
	if a.ExtraClaims.Email != "" {
		return a.ExtraClaims.Email
	}
	return a.ExtraClaims.Name
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "twofa context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var (
	AuthAccountKey = &contextKey{"AuthAccount"}
)

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthAccountMiddleware resolves the AuthAccount from a token verified by
// Verifier and stores it in the request context
func AuthAccountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}

		accountID, err := uuid.Parse(token.Subject())
		if err != nil {
			slog.Warn("failed to parse subject as UUID", "sub", token.Subject(), "error", err)
			http.Error(w, "invalid subject in token", http.StatusUnauthorized)
			return
		}

		account := &AuthAccount{AccountID: accountID}
		if extraClaimsRaw, exists := claims["extra_claims"]; exists {
			extraClaims, ok := extraClaimsRaw.(map[string]interface{})
			if !ok {
				http.Error(w, "invalid extra claims format", http.StatusUnauthorized)
				return
			}
			if err := LoadFromMap(extraClaims, &account.ExtraClaims); err != nil {
				slog.Error("failed to parse extra claims", "error", err)
				http.Error(w, "invalid extra claims data", http.StatusUnauthorized)
				return
			}
		}

		slog.Debug("authenticated account", "account", account)
		ctx := context.WithValue(r.Context(), AuthAccountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthAccount returns the account stored by AuthAccountMiddleware
func GetAuthAccount(r *http.Request) (*AuthAccount, bool) {
	account, ok := r.Context().Value(AuthAccountKey).(*AuthAccount)
	return account, ok && account != nil
}

// WithAuthAccount returns ctx carrying account
func WithAuthAccount(ctx context.Context, account *AuthAccount) context.Context {
	return context.WithValue(ctx, AuthAccountKey, account)
}

func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}
