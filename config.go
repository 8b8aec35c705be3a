package llmtools

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the tool and dispatch settings.
//
//	fix_json_args: true
//	case_insensitive: false
//	strict: true
//	max_concurrency: 4
//	timeout: 30s
//	choice: 0
type Config struct {
	// FixJSONArgs defaults to true when omitted.
	FixJSONArgs     *bool         `yaml:"fix_json_args"`
	CaseInsensitive bool          `yaml:"case_insensitive"`
	Strict          bool          `yaml:"strict"`
	MaxConcurrency  int           `yaml:"max_concurrency"`
	Timeout         time.Duration `yaml:"timeout"`
	Choice          int           `yaml:"choice"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML config. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxConcurrency < 0 {
		return nil, fmt.Errorf("parse config: max_concurrency must not be negative, got %d", cfg.MaxConcurrency)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("parse config: timeout must not be negative, got %s", cfg.Timeout)
	}
	return &cfg, nil
}

func (c *Config) fixJSONArgs() bool {
	return c.FixJSONArgs == nil || *c.FixJSONArgs
}

// ToolOptions returns the tool options described by c.
func (c *Config) ToolOptions() []ToolOption {
	var opts []ToolOption
	if c.Strict {
		opts = append(opts, WithStrict())
	}
	if c.CaseInsensitive {
		opts = append(opts, WithCaseInsensitive())
	}
	return opts
}

// DispatchOptions returns the dispatch options described by c.
func (c *Config) DispatchOptions() []DispatchOption {
	opts := []DispatchOption{
		WithFixJSONArgs(c.fixJSONArgs()),
		WithCallTimeout(c.Timeout),
		WithChoice(c.Choice),
	}
	if c.CaseInsensitive {
		opts = append(opts, WithCaseInsensitiveMatch())
	}
	if c.MaxConcurrency > 0 {
		opts = append(opts, WithExecutor(NewPool(c.MaxConcurrency)))
	}
	return opts
}

// ToolboxOptions returns the toolbox options described by c.
func (c *Config) ToolboxOptions() []ToolboxOption {
	opts := []ToolboxOption{
		WithFixJSON(c.fixJSONArgs()),
		WithDefaultTimeout(c.Timeout),
		WithMaxConcurrency(c.MaxConcurrency),
	}
	if c.Strict {
		opts = append(opts, WithToolboxStrict())
	}
	if c.CaseInsensitive {
		opts = append(opts, WithToolboxCaseInsensitive())
	}
	return opts
}
