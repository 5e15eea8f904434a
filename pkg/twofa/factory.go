package twofa

import (
	"fmt"

	"github.com/tendant/simple-twofa/pkg/kvstore"
)

// NewTwoFaServiceFromConfig validates cfg and creates a service whose
// records live in store
func NewTwoFaServiceFromConfig(store kvstore.Store, cfg Config, opts ...Option) (*TwoFaService, error) {
	if store == nil {
		return nil, fmt.Errorf("store required for 2FA service")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid 2FA config: %w", err)
	}
	all := append([]Option{WithConfig(cfg)}, opts...)
	return NewTwoFaService(NewKVTwoFARepository(store), all...), nil
}
