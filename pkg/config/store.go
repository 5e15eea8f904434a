package config

import "github.com/tendant/simple-twofa/pkg/kvstore"

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	Type       string `env:"TWOFA_STORE" env-default:"file" env-description:"memory, file, postgres or sqlite"`
	DataDir    string `env:"TWOFA_DATA_DIR" env-default:"./data"`
	SQLitePath string `env:"TWOFA_SQLITE_PATH"`
	Database   DatabaseConfig
}

// ToKVStoreConfig converts the config for kvstore.NewStore
func (s StoreConfig) ToKVStoreConfig() kvstore.Config {
	cfg := kvstore.Config{
		DataDir:    s.DataDir,
		SQLitePath: s.SQLitePath,
	}
	if s.Type == "postgres" || s.Type == "postgresql" {
		cfg.DatabaseURL = s.Database.ToDatabaseURL()
	}
	return cfg
}
