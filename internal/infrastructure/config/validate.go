package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config key
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	return v
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q check", configKey(e.Namespace()), e.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.SideA.Sessions))
	for _, s := range c.SideA.Sessions {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("side_a.sessions: duplicate session id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	if c.App.Env == "production" && c.Telemetry.Enabled && c.Telemetry.Insecure {
		return fmt.Errorf("telemetry.insecure must be false in production")
	}

	return nil
}

// configKey turns "Config.side_a.request_patterns[1]" into "side_a.request_patterns[1]"
func configKey(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
