package config

import (
	"errors"
	"strings"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SecurityConfig
	Validate() error
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetDatabaseURL() string
	GetRedisURL() string
	GetBootstrapAdminUsername() string
	GetBootstrapAdminPassword() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Security
}

func New() Config {
	return mainConfig{}
}

// Validate rejects configurations that would let one token type be forged with the other's secret.
func (c mainConfig) Validate() error {
	access := strings.TrimSpace(c.GetAccessTokenSecret())
	refresh := strings.TrimSpace(c.GetRefreshTokenSecret())
	if access == "" || refresh == "" {
		return errors.New("access and refresh token secrets must be configured")
	}
	if access == refresh {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.GetAccessTokenTTL() <= 0 || c.GetRefreshTokenTTL() <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}
