package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CloudConfig represents a pre-configured Mist cloud tenant in the config file.
type CloudConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Role     string `yaml:"role" validate:"omitempty,oneof=source destination"`
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	Token    string `yaml:"token" validate:"required"`
	Insecure bool   `yaml:"insecure"`
}

// Config holds all configuration (CLI flags + config file).
type Config struct {
	Listen string        `yaml:"listen"`
	Clouds []CloudConfig `yaml:"clouds"`

	// internal: path to config file (from CLI flag)
	configFile string
}

// Parse reads CLI flags, then overlays config file values.
// CLI flags take precedence over config file values.
func Parse() *Config {
	c := &Config{}
	flag.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	flag.StringVar(&c.Listen, "listen", "", "HTTP listen address")
	flag.Parse()

	// Load config file if specified
	if c.configFile != "" {
		if err := c.loadFile(c.configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
	}

	// Apply defaults for anything still unset
	if c.Listen == "" {
		c.Listen = ":8080"
	}

	if err := c.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	return c
}

// Validate checks all cloud profiles.
func (c *Config) Validate() error {
	v := validator.New()
	for i := range c.Clouds {
		if err := v.Struct(&c.Clouds[i]); err != nil {
			return fmt.Errorf("cloud %q: %w", c.Clouds[i].Name, err)
		}
	}
	return nil
}

// loadFile reads a YAML config file. Values from the file are only applied
// if the corresponding CLI flag was not explicitly set.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if c.Listen == "" && file.Listen != "" {
		c.Listen = file.Listen
	}

	// Cloud profiles always come from the config file
	c.Clouds = file.Clouds

	return nil
}
