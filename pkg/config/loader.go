package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by config structs that check cross-field
// constraints after environment parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into cfg using its `env` tags and, when
// cfg implements Validator, runs Validate on the result.
//
//	type Config struct {
//	    HTTPPort int    `env:"SCORING_HTTP_PORT" envDefault:"8011"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
