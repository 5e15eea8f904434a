// Command twofa-server serves the 2FA engine over HTTP.
//
// Configuration comes from environment variables (see pkg/config), optionally
// loaded from a .env file next to the binary or in the working directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-twofa/pkg/client"
	"github.com/tendant/simple-twofa/pkg/config"
	"github.com/tendant/simple-twofa/pkg/credential"
	"github.com/tendant/simple-twofa/pkg/kvstore"
	"github.com/tendant/simple-twofa/pkg/logging"
	"github.com/tendant/simple-twofa/pkg/notification"
	"github.com/tendant/simple-twofa/pkg/ratelimit"
	"github.com/tendant/simple-twofa/pkg/settings"
	settingsapi "github.com/tendant/simple-twofa/pkg/settings/api"
	"github.com/tendant/simple-twofa/pkg/twofa"
	twofaapi "github.com/tendant/simple-twofa/pkg/twofa/api"
)

func main() {
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		if usage, uerr := config.Usage(); uerr == nil {
			fmt.Fprintln(os.Stderr, usage)
		}
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Log.ToLoggingConfig(cfg.Environment()))
	if err != nil {
		slog.Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.Info("Starting 2FA service")
	slog.Info(strings.Repeat("=", 60))
	if cfg.JWT.IsDefaultSecret() {
		slog.Warn("JWT secret is the development default - set JWT_SECRET before deploying")
	}

	ctx := context.Background()
	store, err := kvstore.NewStore(ctx, cfg.Store.Type, cfg.Store.ToKVStoreConfig())
	if err != nil {
		slog.Error("Failed to open store", "type", cfg.Store.Type, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Store opened", "type", cfg.Store.Type)

	services, err := initializeServices(store, &cfg)
	if err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer services.rateLimiter.Close()

	server := app.DefaultApp()
	setupRoutes(server.R, services, &cfg)

	prefix := cfg.Server.Prefix
	slog.Info(strings.Repeat("=", 60))
	slog.Info("2FA Service Ready")
	slog.Info("Base URL: " + cfg.Server.BaseURL)
	slog.Info("API Endpoints:")
	slog.Info("  POST " + prefix.TwoFA + "/setup                    - Start enrollment")
	slog.Info("  POST " + prefix.TwoFA + "/setup/verify             - Confirm enrollment")
	slog.Info("  POST " + prefix.TwoFA + "/verify                   - Verify a code")
	slog.Info("  POST " + prefix.TwoFA + "/disable                  - Disable 2FA")
	slog.Info("  GET  " + prefix.TwoFA + "/status                   - 2FA status")
	slog.Info("  GET  " + prefix.Settings + "/security          - Security settings")
	slog.Info(strings.Repeat("=", 60))

	server.Run()
}

type Services struct {
	twoFaService    twofa.TwoFactorService
	settingsService *settings.SettingsService
	confirmer       *credential.Confirmer
	rateLimiter     *ratelimit.Middleware
	jwtAuth         *jwtauth.JWTAuth
}

func initializeServices(store kvstore.Store, cfg *config.Config) (*Services, error) {
	settingsService := settings.NewSettingsService(store)

	notificationManager, err := newNotificationManager(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("notification manager: %w", err)
	}

	var twoFaService twofa.TwoFactorService
	if cfg.TwoFA.Enabled {
		twoFaService, err = twofa.NewTwoFaServiceFromConfig(
			store,
			cfg.TwoFA.ToEngineConfig(),
			twofa.WithSettingsSync(settingsService),
			twofa.WithNotificationManager(notificationManager),
		)
		if err != nil {
			return nil, err
		}
		slog.Info("2FA engine configured",
			"issuer", cfg.TwoFA.Issuer,
			"max_attempts", cfg.TwoFA.MaxAttempts,
			"lockout_duration", cfg.TwoFA.LockoutDuration,
			"code_derivation", cfg.TwoFA.CodeDerivation)
	} else {
		slog.Warn("2FA is disabled (TWOFA_ENABLED=false); all accounts report 2FA as not enabled")
		twoFaService = twofa.NewNoOpTwoFactorService()
	}

	confirmer, err := credential.NewConfirmer(cfg.TwoFA.AdminPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("TWOFA_ADMIN_PASSWORD_HASH: %w", err)
	}
	if !confirmer.Required() {
		slog.Warn("No TWOFA_ADMIN_PASSWORD_HASH set; disabling 2FA needs no confirmation token")
	}

	return &Services{
		twoFaService:    twoFaService,
		settingsService: settingsService,
		confirmer:       confirmer,
		rateLimiter:     ratelimit.NewMiddleware(cfg.RateLimit.ToMiddlewareConfig()),
		jwtAuth:         jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil),
	}, nil
}

// newNotificationManager always logs notices and also emails them when SMTP is configured
func newNotificationManager(email config.EmailConfig) (*notification.NotificationManager, error) {
	opts := []notification.NotificationManagerOption{
		notification.WithLogger(slog.Default()),
	}
	if email.IsConfigured() {
		opts = append(opts, notification.WithSMTP(email.ToSMTPConfig()))
		slog.Info("Email notifications enabled", "host", email.Host, "port", email.Port)
	}
	opts = append(opts, notification.WithDefaultTemplates())
	return notification.NewNotificationManagerWithOptions(email.DefaultRecipient, opts...)
}

func setupRoutes(r *chi.Mux, services *Services, cfg *config.Config) {
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	r.Handle("/metrics", promhttp.Handler())

	twoFaHandle := twofaapi.NewHandle(services.twoFaService, twofaapi.WithConfirmer(services.confirmer))
	settingsHandle := settingsapi.NewHandle(services.settingsService)

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(client.Verifier(services.jwtAuth))
		r.Use(jwtauth.Authenticator(services.jwtAuth))
		r.Use(client.AuthAccountMiddleware)
		r.Use(client.RequireAuth)

		r.With(services.rateLimiter.Handler).Mount(cfg.Server.Prefix.TwoFA, twofaapi.TwoFaHandler(twoFaHandle))
		r.Mount(cfg.Server.Prefix.Settings, settingsapi.Routes(settingsHandle))
	})
}
