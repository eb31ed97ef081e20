package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks configuration values and returns an error listing every
// invalid one.
func (c Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port must be between 1 and 65535, got: %d", c.Port))
	}

	if strings.TrimSpace(c.ResultsDir) == "" {
		errs = append(errs, "results_dir must not be empty")
	}

	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		errs = append(errs, fmt.Sprintf("extension must start with a dot, got: %q", c.Extension))
	}

	switch c.Engine {
	case "native":
	case "script":
		if c.Script.Interpreter == "" {
			errs = append(errs, "script.interpreter must be set for the script engine")
		}
		if c.Script.Path == "" {
			errs = append(errs, "script.path must be set for the script engine")
		}
	default:
		errs = append(errs, fmt.Sprintf("engine must be one of native, script; got: %q", c.Engine))
	}

	timeouts := []struct {
		key string
		d   time.Duration
	}{
		{"script.timeout", c.Script.Timeout},
		{"git.timeout", c.Git.Timeout},
		{"git.cache_ttl", c.Git.CacheTTL},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got: %v", t.key, t.d))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
