package authflow

import (
	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the knobs an embedding application supplies.
type Config interface {
	GetAPIBaseURL() string
	GetStorageDSN() string
	GetLoginRoute() string
	GetLandingRoute() string
	GetPhonePrefix() string
}

// EnvConfig reads configuration from the environment.
type EnvConfig struct {
	APIBaseURL   string `env:"AUTHFLOW_API_URL" envDefault:"http://localhost:8080"`
	StorageDSN   string `env:"AUTHFLOW_STORAGE_DSN" envDefault:"file:authflow.db"`
	LoginRoute   string `env:"AUTHFLOW_LOGIN_ROUTE" envDefault:"/login"`
	LandingRoute string `env:"AUTHFLOW_LANDING_ROUTE" envDefault:"/"`
	PhonePrefix  string `env:"AUTHFLOW_PHONE_PREFIX" envDefault:"+91"`
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig parses the environment into an EnvConfig.
func LoadConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment configuration")
	}
	return cfg, nil
}

func (c *EnvConfig) GetAPIBaseURL() string   { return c.APIBaseURL }
func (c *EnvConfig) GetStorageDSN() string   { return c.StorageDSN }
func (c *EnvConfig) GetLoginRoute() string   { return c.LoginRoute }
func (c *EnvConfig) GetLandingRoute() string { return c.LandingRoute }
func (c *EnvConfig) GetPhonePrefix() string  { return c.PhonePrefix }
