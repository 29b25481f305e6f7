package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ApplyEnv overlays TICKMERGE_* environment variables onto cfg. Unset
// variables leave cfg unchanged.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
