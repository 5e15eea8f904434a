// Package kvstore provides the key-value persistence port used by simple-twofa.
//
// All 2FA state (pending setups, enabled records, lockout state) and the
// security settings document are stored as JSON strings under namespaced keys.
// Backends:
//
//   - inmem    - process-local map, for tests and the CLI's dry runs
//   - file     - a single JSON document written atomically (temp file + rename)
//   - postgres - a kv table accessed through pgx/v5
//   - sqlite   - a kv table in a pure-Go SQLite database (modernc.org/sqlite)
//
// # Basic Usage
//
//	store, err := kvstore.NewStore(ctx, "file", kvstore.Config{DataDir: "./data"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.Set(ctx, "twofa/42/enabled", `{"enabled":true}`); err != nil {
//		return err
//	}
//	value, found, err := store.Get(ctx, "twofa/42/enabled")
package kvstore
