package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultOriginHeaderValue is the Origin sent in probes when nothing else is configured.
const DefaultOriginHeaderValue = "http://w3af.sourceforge.net/"

// Output formats accepted by Output.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrEmptyOrigin is returned when the configured Origin header value is blank.
var ErrEmptyOrigin = errors.New(`please enter a valid value for the "Origin" HTTP header`)

// ConfigurationError reports a rejected configuration. It is fatal to the load attempt only.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// OutputConfig holds configuration settings related to output and logging.
type OutputConfig struct {
	Format     string `yaml:"format"`      // Output format (e.g., "text", "json").
	OutputFile string `yaml:"output_file"` // Path to save the JSON report.
	Verbose    bool   `yaml:"verbose"`     // Enable verbose logging.
	LogLevel   string `yaml:"log_level"`   // Explicit level, overrides verbose.
}

// CORSConfig holds the options of the CORS origin audit.
type CORSConfig struct {
	// OriginHeaderValue is the value of the Origin header used to build probes.
	OriginHeaderValue string `yaml:"origin_header_value"`
	// ExtendedOrigins adds the bypass-variant origins to every probe round.
	ExtendedOrigins bool `yaml:"extended_origins"`
	// ProbeConcurrency caps how many origins of one URL are probed at once.
	ProbeConcurrency int `yaml:"probe_concurrency"`
}

// Config is the main struct to hold all configuration data from the YAML file.
type Config struct {
	Target      string   `yaml:"target"`       // Single target URL.
	TargetsFile string   `yaml:"targets_file"` // File with one URL per line.
	Targets     []string `yaml:"targets"`      // Additional target URLs.
	Concurrency int      `yaml:"concurrency"`  // Number of concurrent workers.
	MaxRetries  int      `yaml:"max_retries"`  // Maximum number of retries for HTTP requests.
	Delay       int      `yaml:"delay"`        // Delay between retries in milliseconds.
	Timeout     int      `yaml:"timeout"`      // Per-request timeout in seconds.
	UserAgent   string   `yaml:"user_agent"`
	Insecure    bool     `yaml:"insecure"` // Skip TLS verification.

	CORS   CORSConfig   `yaml:"cors"`
	Output OutputConfig `yaml:"output"`

	Authentication struct {
		Cookie  string            `yaml:"cookie"`
		Headers map[string]string `yaml:"headers"`
	} `yaml:"authentication"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Concurrency: 5,
		MaxRetries:  1,
		Timeout:     15,
		CORS: CORSConfig{
			OriginHeaderValue: DefaultOriginHeaderValue,
			ProbeConcurrency:  4,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// It returns the defaults if the file does not exist. The result is validated.
func LoadConfig(filePath string) (*Config, error) {
	config := Default()

	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", filePath, err)
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", filePath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the scanner cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CORS.OriginHeaderValue) == "" {
		return &ConfigurationError{Field: "cors.origin_header_value", Err: ErrEmptyOrigin}
	}
	if c.Concurrency < 0 {
		return &ConfigurationError{Field: "concurrency", Err: fmt.Errorf("must not be negative, got %d", c.Concurrency)}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Err: fmt.Errorf("must not be negative, got %d", c.Timeout)}
	}
	switch c.OutputFormat() {
	case FormatText, FormatJSON:
	default:
		return &ConfigurationError{Field: "output.format", Err: fmt.Errorf("want %q or %q, got %q", FormatText, FormatJSON, c.Output.Format)}
	}
	return nil
}

// OutputFormat returns Output.Format normalized to lower case, "text" when unset.
func (c *Config) OutputFormat() string {
	f := strings.ToLower(strings.TrimSpace(c.Output.Format))
	if f == "" {
		return FormatText
	}
	return f
}

// AllTargets merges Target and Targets, dropping blanks and duplicates while keeping order.
func (c *Config) AllTargets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append([]string{c.Target}, c.Targets...) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
