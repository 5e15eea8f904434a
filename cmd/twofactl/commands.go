package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-twofa/pkg/twofa"
)

func (c *cli) setupCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "setup <account-id>",
		Short: "Start 2FA enrollment and print the secret and backup codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *twofa.TwoFaService) error {
				setup, err := svc.BeginSetup(cmd.Context(), accountID, label)
				if err != nil {
					return err
				}
				p := c.printer(cmd)
				return p.print(setup, func() {
					p.properties([][]string{
						{"Secret", setup.Secret},
						{"Issuer", setup.QRPayload.Issuer},
						{"Account", setup.QRPayload.AccountLabel},
						{"URL", setup.QRPayload.URL},
					})
					p.list("Backup Code", setup.BackupCodes)
					p.warning("Store the backup codes now; confirm with: twofactl confirm %s <code>", accountID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "account label shown in authenticator apps")
	return cmd
}

func (c *cli) confirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <account-id> <code>",
		Short: "Confirm a pending enrollment with a code from the authenticator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *twofa.TwoFaService) error {
				result, err := svc.VerifySetup(cmd.Context(), accountID, args[1])
				return c.printResult(cmd, result, err)
			})
		},
	}
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <account-id> <code>",
		Short: "Verify a TOTP or backup code; failures count towards the lockout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *twofa.TwoFaService) error {
				result, err := svc.Verify(cmd.Context(), accountID, args[1])
				return c.printResult(cmd, result, err)
			})
		},
	}
}

// printResult prints a verification result and passes err through so the
// process exits non-zero on failure
func (c *cli) printResult(cmd *cobra.Command, result twofa.VerificationResult, err error) error {
	p := c.printer(cmd)
	perr := p.print(result, func() {
		if result.Success {
			p.success("%s (%s)", result.Message, result.Method)
			return
		}
		p.failure("%s", result.Message)
		if result.RemainingAttempts != nil && result.LockedUntil == nil {
			p.warning("Remaining attempts: %d", *result.RemainingAttempts)
		}
	})
	if perr != nil {
		return perr
	}
	return err
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <account-id>",
		Short: "Show 2FA state, lockout and backup code count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *twofa.TwoFaService) error {
				status, err := svc.Status(cmd.Context(), accountID)
				if err != nil {
					return err
				}
				p := c.printer(cmd)
				return p.print(status, func() {
					p.properties([][]string{
						{"Enabled", strconv.FormatBool(status.Enabled)},
						{"Account", status.AccountLabel},
						{"Enabled At", formatTime(status.EnabledAt)},
						{"Last Used At", formatTime(status.LastUsedAt)},
						{"Backup Codes", strconv.Itoa(status.BackupCodesRemaining)},
						{"Setup Pending", strconv.FormatBool(status.SetupPending)},
						{"Locked", strconv.FormatBool(status.Locked)},
						{"Locked Until", formatTime(status.LockedUntil)},
						{"Failed Attempts", fmt.Sprintf("%d/%d", status.FailedAttempts, status.MaxAttempts)},
					})
				})
			})
		},
	}
}

func (c *cli) disableCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "disable <account-id>",
		Short: "Disable 2FA and clear pending setup and lockout state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return errors.New("refusing to disable 2FA without --yes")
			}
			return c.withService(cmd.Context(), func(svc *twofa.TwoFaService) error {
				if err := svc.Disable(cmd.Context(), accountID, ""); err != nil {
					return err
				}
				p := c.printer(cmd)
				return p.print(map[string]interface{}{"account_id": accountID, "enabled": false}, func() {
					p.success("2FA disabled for %s", accountID)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm disabling 2FA")
	return cmd
}

func (c *cli) codesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage backup codes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <account-id>",
		Short: "List the remaining backup codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *twofa.TwoFaService) error {
				codes, err := svc.GetBackupCodes(cmd.Context(), accountID)
				if err != nil {
					return err
				}
				return c.printCodes(cmd, codes)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate <account-id>",
		Short: "Replace all backup codes with a fresh set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(svc *twofa.TwoFaService) error {
				codes, err := svc.RegenerateBackupCodes(cmd.Context(), accountID)
				if err != nil {
					return err
				}
				return c.printCodes(cmd, codes)
			})
		},
	})

	return cmd
}

func (c *cli) printCodes(cmd *cobra.Command, codes []string) error {
	p := c.printer(cmd)
	return p.print(map[string]interface{}{"backup_codes": codes, "count": len(codes)}, func() {
		if len(codes) == 0 {
			p.warning("No backup codes")
			return
		}
		p.list("Backup Code", codes)
	})
}

type codeOutput struct {
	Code      string `json:"code"`
	Window    int64  `json:"window"`
	ExpiresIn int    `json:"expires_in"`
}

func (c *cli) codeCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "code <secret>",
		Short: "Print the current code for a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := c.now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed
			}

			deriver, err := twofa.DeriverByName(c.v.GetString("code_derivation"))
			if err != nil {
				return err
			}
			generator := twofa.NewCodeGenerator(nil, deriver)
			code, err := generator.CurrentCode(args[0], now)
			if err != nil {
				return err
			}

			window := twofa.TimeWindow(now.Unix())
			out := codeOutput{
				Code:      code,
				Window:    window,
				ExpiresIn: int((window+1)*twofa.TimeStep - now.Unix()),
			}
			p := c.printer(cmd)
			return p.print(out, func() {
				p.success("%s", out.Code)
				fmt.Fprintf(cmd.OutOrStdout(), "valid for %ds\n", out.ExpiresIn)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 time to compute the code for (default now)")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		email string
		name  string
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <account-id>",
		Short: "Mint an HS256 bearer token for the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = c.v.GetDuration("jwt.token_expiry")
			}

			signed, expiresAt, err := mintToken(c.v.GetString("jwt.secret"), c.v.GetString("jwt.issuer"),
				c.v.GetString("jwt.audience"), accountID.String(), email, name, roles, c.now(), ttl)
			if err != nil {
				return err
			}
			if c.v.GetString("jwt.secret") == defaultJWTSecret {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: signing with the development default secret")
			}

			p := c.printer(cmd)
			return p.print(map[string]interface{}{"token": signed, "expires_at": expiresAt}, func() {
				fmt.Fprintln(cmd.OutOrStdout(), signed)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim, also used as the account label")
	cmd.Flags().StringVar(&name, "name", "", "name claim")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role claim (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default jwt.token_expiry)")
	return cmd
}

func mintToken(secret, issuer, audience, subject, email, name string, roles []string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("jwt.secret is required")
	}
	expiresAt := now.Add(ttl).UTC()

	extra := map[string]interface{}{}
	if email != "" {
		extra["email"] = email
	}
	if name != "" {
		extra["name"] = name
	}
	if len(roles) > 0 {
		extra["roles"] = roles
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"iss": issuer,
		"aud": audience,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if len(extra) > 0 {
		claims["extra_claims"] = extra
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
