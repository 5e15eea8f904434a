// Package settings keeps a per-account security settings document
// (password policy, 2FA, session, rate limiting and audit logging sections).
//
// SettingsService implements twofa.SettingsSync so the 2FA section follows
// enrollment and disable.
package settings
