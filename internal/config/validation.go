package config

import (
	"git.home.luguber.info/inful/harvestcycle/internal/foundation/errors"
)

// Validate checks a configuration after defaults were applied.
func Validate(cfg *Config) error {
	if _, err := stateFormatNormalizer.NormalizeWithError(cfg.State.Format); err != nil {
		return errors.ConfigError("invalid state.format").WithCause(err).Build()
	}
	if NormalizeRetryBackoff(string(cfg.Retry.Backoff)) == "" {
		return errors.ConfigError("invalid retry.backoff").WithContext("backoff", string(cfg.Retry.Backoff)).Build()
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.ConfigError("retry.max_retries cannot be negative").Build()
	}
	if cfg.AutoSave.Interval < 0 {
		return errors.ConfigError("autosave.interval cannot be negative").Build()
	}
	return nil
}
