package kvstore

import "context"

// Store is a durable string key-value store.
//
// Get reports found=false with a nil error for a missing key. Any non-nil error
// means the backend could not be read or written and must not be treated as a
// missing value.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
