// Package config loads run settings from YAML files.
package config

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/cwbudde/neldermead/internal/neldermead"
	"gopkg.in/yaml.v3"
)

// Methods accepted in Config.Method.
const (
	MethodNelderMead = "nelder-mead"
	MethodMayfly     = "mayfly"
)

// Config describes one optimization run.
type Config struct {
	LogLevel      string       `yaml:"log_level"`
	Objective     string       `yaml:"objective"`
	Dim           int          `yaml:"dim"`
	Center        []float64    `yaml:"center,omitempty"`
	Method        string       `yaml:"method"`
	Seed          int64        `yaml:"seed"`
	Tolerance     float64      `yaml:"tolerance"`
	MaxIterations int          `yaml:"max_iterations"`
	InitialScale  float64      `yaml:"initial_scale"`
	Start         []float64    `yaml:"start,omitempty"`
	Coefficients  Coefficients `yaml:"coefficients"`
	Mayfly        Mayfly       `yaml:"mayfly"`
	Trace         Trace        `yaml:"trace"`
}

// Coefficients mirror neldermead.Coefficients.
type Coefficients struct {
	Alpha float64 `yaml:"alpha"`
	Gamma float64 `yaml:"gamma"`
	Rho   float64 `yaml:"rho"`
	Sigma float64 `yaml:"sigma"`
}

// Mayfly holds settings for the population method.
type Mayfly struct {
	Iterations int     `yaml:"iterations"`
	Population int     `yaml:"population"`
	Lower      float64 `yaml:"lower"`
	Upper      float64 `yaml:"upper"`
}

// Trace controls the iteration trace. An empty Dir disables it.
type Trace struct {
	Dir    string `yaml:"dir"`
	Every  int    `yaml:"every"`
	Points bool   `yaml:"points"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	coef := neldermead.DefaultCoefficients()
	return &Config{
		LogLevel:      "info",
		Objective:     "sphere",
		Dim:           2,
		Method:        MethodNelderMead,
		Seed:          42,
		Tolerance:     neldermead.DefaultTolerance,
		MaxIterations: neldermead.DefaultMaxIterations,
		InitialScale:  neldermead.DefaultInitialScale,
		Coefficients: Coefficients{
			Alpha: coef.Alpha,
			Gamma: coef.Gamma,
			Rho:   coef.Rho,
			Sigma: coef.Sigma,
		},
		Mayfly: Mayfly{
			Iterations: 200,
			Population: 30,
			Lower:      -10,
			Upper:      10,
		},
		Trace: Trace{
			Every: 1,
		},
	}
}

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfigYAML parses a Config from YAML bytes on top of Default and
// validates it.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// Validate checks field ranges. Objective names are resolved later by the
// objective registry.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return &ValidationError{Field: "log_level", Reason: fmt.Sprintf("must be debug, info, warn, or error, got %q", c.LogLevel)}
	}
	if c.Objective == "" {
		return &ValidationError{Field: "objective", Reason: "cannot be empty"}
	}
	if c.Dim <= 0 {
		return &ValidationError{Field: "dim", Reason: "must be positive"}
	}
	if c.Center != nil && len(c.Center) != c.Dim {
		return &ValidationError{Field: "center", Reason: fmt.Sprintf("has length %d, want %d", len(c.Center), c.Dim)}
	}
	if c.Start != nil && len(c.Start) != c.Dim {
		return &ValidationError{Field: "start", Reason: fmt.Sprintf("has length %d, want %d", len(c.Start), c.Dim)}
	}

	switch c.Method {
	case MethodNelderMead:
		if _, err := c.Settings(); err != nil {
			return &ValidationError{Field: "settings", Reason: err.Error()}
		}
	case MethodMayfly:
		if c.Mayfly.Iterations <= 0 {
			return &ValidationError{Field: "mayfly.iterations", Reason: "must be positive"}
		}
		if c.Mayfly.Population <= 0 {
			return &ValidationError{Field: "mayfly.population", Reason: "must be positive"}
		}
		if !(c.Mayfly.Lower < c.Mayfly.Upper) {
			return &ValidationError{Field: "mayfly.lower", Reason: "must be below mayfly.upper"}
		}
	default:
		return &ValidationError{Field: "method", Reason: fmt.Sprintf("must be %s or %s, got %q", MethodNelderMead, MethodMayfly, c.Method)}
	}

	if c.Trace.Every < 0 {
		return &ValidationError{Field: "trace.every", Reason: "cannot be negative"}
	}
	return nil
}

// Settings converts the Nelder-Mead part of the config and checks it with
// neldermead.Settings.Validate. The random source is seeded from Seed.
func (c *Config) Settings() (*neldermead.Settings, error) {
	s := &neldermead.Settings{
		Coefficients: neldermead.Coefficients{
			Alpha: c.Coefficients.Alpha,
			Gamma: c.Coefficients.Gamma,
			Rho:   c.Coefficients.Rho,
			Sigma: c.Coefficients.Sigma,
		},
		Tolerance:     c.Tolerance,
		MaxIterations: c.MaxIterations,
		InitialScale:  c.InitialScale,
		Start:         c.Start,
		Rand:          rand.New(rand.NewSource(c.Seed)),
	}

	if err := s.Validate(c.Dim); err != nil {
		return nil, err
	}
	return s, nil
}

// Bounds returns per-dimension bounds for the population method.
func (c *Config) Bounds() (lower, upper []float64) {
	lower = make([]float64, c.Dim)
	upper = make([]float64, c.Dim)
	for i := 0; i < c.Dim; i++ {
		lower[i] = c.Mayfly.Lower
		upper[i] = c.Mayfly.Upper
	}
	return lower, upper
}
