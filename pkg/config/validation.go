package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittoxfer/pkg/pool"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their config file keys.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Xfer.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if _, err := pool.ParseKind(cfg.Adapters.Xfer.PoolKind); err != nil {
		return fmt.Errorf("adapters.xfer.pool_kind: %w", err)
	}

	// Worker processes each open the store; only backends that several
	// processes can share are allowed.
	if cfg.Adapters.Xfer.PoolKind == string(pool.KindProcess) {
		switch cfg.Store.Type {
		case "filesystem", "s3":
		default:
			return fmt.Errorf("adapters.xfer.pool_kind: process pool requires a filesystem or s3 store, got %q", cfg.Store.Type)
		}
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.Xfer.Port {
		return fmt.Errorf("server.metrics.port: %d conflicts with adapters.xfer.port", cfg.Server.Metrics.Port)
	}

	return nil
}

// formatValidationError reports the first validator error by its config
// key, e.g. "adapters.xfer.pool_kind".
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		key := e.Namespace()
		if _, rest, ok := strings.Cut(key, "."); ok {
			key = rest
		}
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			key, e.Tag(), e.Value())
	}
	return err
}
