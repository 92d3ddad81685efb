// Package config holds the well-known names and session settings shared by
// every resolution component.
//
// A Config is built once per session (from resolvekit.yaml or Default) and
// is never mutated afterwards; components receive it by pointer.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the resolvekit.yaml configuration.
type Config struct {
	// Operators are the names looked up for delegation and the invoke
	// convention.
	Operators Operators `yaml:"operators"`

	// PropertyType is the metadata type passed as the `property` argument
	// of delegate operators (e.g. "lang.KProperty").
	PropertyType string `yaml:"property_type"`

	// BuiltinPackage is the package holding the synthetic built-in classes.
	BuiltinPackage string `yaml:"builtin_package"`

	// DefaultImports are implicitly imported into every unit at the lowest
	// priority (e.g. "lang.*").
	DefaultImports []string `yaml:"default_imports"`

	// Workers bounds the number of units processed concurrently.
	// Zero means one worker per unit.
	Workers int `yaml:"workers"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Operators names the convention operators.
type Operators struct {
	ProvideDelegate string `yaml:"provide_delegate"`
	GetValue        string `yaml:"get_value"`
	SetValue        string `yaml:"set_value"`
	Invoke          string `yaml:"invoke"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a resolvekit.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses resolvekit.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.setDefaults()
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfig searches for resolvekit.yaml starting from dir and walking up
// to parent directories. It returns an empty path and nil error if no file
// is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		candidate = filepath.Join(dir, "resolvekit.yml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) setDefaults() {
	if c.Operators.ProvideDelegate == "" {
		c.Operators.ProvideDelegate = ProvideDelegateName
	}
	if c.Operators.GetValue == "" {
		c.Operators.GetValue = GetValueName
	}
	if c.Operators.SetValue == "" {
		c.Operators.SetValue = SetValueName
	}
	if c.Operators.Invoke == "" {
		c.Operators.Invoke = InvokeName
	}
	if c.BuiltinPackage == "" {
		c.BuiltinPackage = BuiltinPackageName
	}
	if c.PropertyType == "" {
		c.PropertyType = c.BuiltinPackage + "." + PropertyTypeName
	}
	if c.DefaultImports == nil {
		c.DefaultImports = []string{c.BuiltinPackage + ".*"}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Workers < 0 {
		return fmt.Errorf("%s: workers must not be negative", path)
	}

	seen := make(map[string]string)
	for _, op := range []struct{ field, name string }{
		{"provide_delegate", c.Operators.ProvideDelegate},
		{"get_value", c.Operators.GetValue},
		{"set_value", c.Operators.SetValue},
		{"invoke", c.Operators.Invoke},
	} {
		if !isIdentifier(op.name) {
			return fmt.Errorf("%s: operators.%s: %q is not an identifier", path, op.field, op.name)
		}
		if other, ok := seen[op.name]; ok {
			return fmt.Errorf("%s: operators.%s and operators.%s share the name %q", path, other, op.field, op.name)
		}
		seen[op.name] = op.field
	}

	if !strings.Contains(c.PropertyType, ".") {
		return fmt.Errorf("%s: property_type %q must be a qualified name", path, c.PropertyType)
	}

	for i, imp := range c.DefaultImports {
		if strings.TrimSuffix(imp, ".*") == "" {
			return fmt.Errorf("%s: default_imports[%d]: empty path", path, i)
		}
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
