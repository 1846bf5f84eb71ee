package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the script manifest file
type Config struct {
	Directories []string       `yaml:"directories" json:"directories,omitempty" jsonschema:"description=Directories of script files to register (one script per file; name is the file name without extension)"`
	Scripts     []ScriptConfig `yaml:"scripts" json:"scripts,omitempty" jsonschema:"description=Individually declared scripts"`

	baseDir string
}

// ScriptConfig represents a script in the manifest
type ScriptConfig struct {
	Name        string `yaml:"name" json:"name" jsonschema:"required,description=Script name used to execute it"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"default=true"`
	File        string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"description=Path to a script file (relative to the manifest)"`
	Content     string `yaml:"content,omitempty" json:"content,omitempty" jsonschema:"description=Inline script body"`

	Metadata map[string]interface{} `yaml:"metadata,omitempty" json:"metadata,omitempty" jsonschema:"description=Free-form metadata stored alongside the script in the database"`
}

// IsEnabled reports whether the script should be registered (default true)
func (s *ScriptConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Load reads and parses a YAML manifest with environment variable interpolation
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.baseDir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ResolvePath resolves a manifest relative path against the manifest's directory
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	for i, dir := range c.Directories {
		if dir == "" {
			return fmt.Errorf("directory %d is empty", i+1)
		}
	}

	scriptNames := make(map[string]bool)
	for _, script := range c.Scripts {
		if script.Name == "" {
			return fmt.Errorf("script missing name")
		}
		if scriptNames[script.Name] {
			return fmt.Errorf("duplicate script name: %s", script.Name)
		}
		scriptNames[script.Name] = true

		// Must have either file or content, but not both
		hasFile := script.File != ""
		hasContent := script.Content != ""
		if !hasFile && !hasContent {
			return fmt.Errorf("script '%s' must have either file or content", script.Name)
		}
		if hasFile && hasContent {
			return fmt.Errorf("script '%s' cannot have both file and content", script.Name)
		}
	}

	return nil
}
