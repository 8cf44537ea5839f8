package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Struct tags drive the
// rules; cross-field rules live in Validate below.
var validate = validator.New()

// Validate checks the configuration against its struct tags plus the
// handful of rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			return fmt.Errorf("%s", formatValidationErrors(verrs))
		}
		return err
	}

	if err := validateRoutes(cfg.Routes); err != nil {
		return err
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics port %d collides with server port", cfg.Metrics.Port)
	}

	return nil
}

// validateRoutes enforces uniqueness across the route table.
func validateRoutes(routes []RouteConfig) error {
	ids := make(map[string]struct{}, len(routes))
	paths := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		if _, dup := ids[route.ID]; dup {
			return fmt.Errorf("duplicate route id %q", route.ID)
		}
		ids[route.ID] = struct{}{}

		normalized := strings.TrimRight(route.Path, "/")
		if _, dup := paths[normalized]; dup {
			return fmt.Errorf("duplicate route path %q", route.Path)
		}
		paths[normalized] = struct{}{}

		if route.Timeout < 0 {
			return fmt.Errorf("route %q has negative timeout", route.ID)
		}
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// formatValidationErrors turns validator output into one readable line
// per failed field.
func formatValidationErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", field))
		case "startswith":
			msgs = append(msgs, fmt.Sprintf("%s must start with %q", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
