package config

import (
	"fmt"
	"net/url"
)

// DatabaseConfig holds PostgreSQL connection settings for the postgres store
type DatabaseConfig struct {
	URL      string `env:"TWOFA_DATABASE_URL"`
	Host     string `env:"TWOFA_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"TWOFA_PG_PORT" env-default:"5432"`
	Database string `env:"TWOFA_PG_DATABASE" env-default:"twofa_db"`
	User     string `env:"TWOFA_PG_USER" env-default:"twofa"`
	Password string `env:"TWOFA_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"TWOFA_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL returns URL when set, otherwise builds one from the parts
func (d DatabaseConfig) ToDatabaseURL() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Database, d.Schema)
}
