package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendant/simple-twofa/pkg/kvstore"
	"github.com/tendant/simple-twofa/pkg/settings"
	"github.com/tendant/simple-twofa/pkg/twofa"
)

const defaultJWTSecret = "very-secure-jwt-secret"

type cli struct {
	v       *viper.Viper
	cfgFile string
	now     func() time.Time
}

func newRootCmd() *cobra.Command {
	return newCLI(time.Now).rootCmd()
}

func newCLI(now func() time.Time) *cli {
	return &cli{v: viper.New(), now: now}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "twofactl",
		Short: "Manage two-factor authentication records",
		Long: `twofactl works directly on the store used by twofa-server: it can
enroll accounts, verify codes, inspect lockouts and backup codes, and mint
bearer tokens for the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.twofactl.yaml)")
	flags.StringP("output", "o", formatTable, "output format (table, json, yaml)")
	flags.String("store", "file", "store type (memory, file, postgres, sqlite)")
	flags.String("data-dir", "./data", "data directory for file and sqlite stores")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.String("database-url", "", "postgres connection url")
	flags.String("issuer", twofa.DefaultIssuer, "issuer shown in authenticator apps")
	flags.Int("max-attempts", twofa.DefaultMaxAttempts, "failed attempts before lockout")
	flags.Duration("lockout-duration", twofa.DefaultLockoutDuration, "lockout duration")
	flags.Duration("setup-ttl", 0, "expire pending setups after this long (0 = never)")
	flags.String("code-derivation", twofa.DerivationTOTP, "code derivation (totp, hash)")

	for _, name := range []string{"output", "store", "data-dir", "sqlite-path", "database-url", "issuer", "max-attempts", "lockout-duration", "setup-ttl", "code-derivation"} {
		cobra.CheckErr(c.v.BindPFlag(configKey(name), flags.Lookup(name)))
	}
	c.v.SetDefault("jwt.secret", defaultJWTSecret)
	c.v.SetDefault("jwt.issuer", "simple-twofa")
	c.v.SetDefault("jwt.audience", "simple-twofa")
	c.v.SetDefault("jwt.token_expiry", 15*time.Minute)

	root.AddCommand(
		c.setupCmd(),
		c.confirmCmd(),
		c.verifyCmd(),
		c.statusCmd(),
		c.disableCmd(),
		c.codesCmd(),
		c.codeCmd(),
		c.tokenCmd(),
	)
	return root
}

// configKey maps a flag name to its config file key
func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// initConfig reads in config file and ENV variables if set
func (c *cli) initConfig() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			c.v.AddConfigPath(home)
		}
		c.v.SetConfigType("yaml")
		c.v.SetConfigName(".twofactl")
	}

	c.v.SetEnvPrefix("TWOFACTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return validFormat(c.v.GetString("output"))
}

func (c *cli) printer(cmd *cobra.Command) printer {
	return printer{w: cmd.OutOrStdout(), format: c.v.GetString("output")}
}

func (c *cli) engineConfig() twofa.Config {
	return twofa.Config{
		Issuer:          c.v.GetString("issuer"),
		MaxAttempts:     c.v.GetInt("max_attempts"),
		LockoutDuration: c.v.GetDuration("lockout_duration"),
		SetupTTL:        c.v.GetDuration("setup_ttl"),
		CodeDerivation:  c.v.GetString("code_derivation"),
	}
}

// withService opens the configured store for the duration of fn
func (c *cli) withService(ctx context.Context, fn func(svc *twofa.TwoFaService) error) error {
	store, err := kvstore.NewStore(ctx, c.v.GetString("store"), kvstore.Config{
		DatabaseURL: c.v.GetString("database_url"),
		DataDir:     c.v.GetString("data_dir"),
		SQLitePath:  c.v.GetString("sqlite_path"),
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	svc, err := twofa.NewTwoFaServiceFromConfig(store, c.engineConfig(),
		twofa.WithClock(c.now),
		twofa.WithSettingsSync(settings.NewSettingsService(store, settings.WithClock(c.now))),
	)
	if err != nil {
		return err
	}
	return fn(svc)
}

func parseAccountID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid account id %q: %w", arg, err)
	}
	return id, nil
}
