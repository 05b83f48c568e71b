// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates .deltalint.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/deltalint/services/deltalint/errs"
	"github.com/AleutianAI/deltalint/services/deltalint/lint"
)

// FileNames are the repository-root config file names, in lookup order.
var FileNames = []string{".deltalint.yaml", ".deltalint.yml"}

// =============================================================================
// TYPES
// =============================================================================

// Config is the contents of .deltalint.yaml.
type Config struct {
	// Glob restricts linted files. Empty means every extension a linter
	// handles.
	Glob string `yaml:"glob,omitempty" validate:"omitempty,glob"`

	// BaseBranch is the default branch for "deltalint base".
	BaseBranch string `yaml:"base_branch,omitempty"`

	// Format names the result formatter.
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=stylish compact json codeframe"`

	// IncludeUntracked lists untracked files in working-tree diffs.
	IncludeUntracked bool `yaml:"include_untracked,omitempty"`

	// RequireLinters fails the run when a needed linter is missing.
	RequireLinters bool `yaml:"require_linters,omitempty"`

	// Concurrency bounds parallel blob reads and linter processes. Zero
	// means GOMAXPROCS.
	Concurrency int `yaml:"concurrency,omitempty" validate:"gte=0,lte=256"`

	Linters  map[string]LinterOverride `yaml:"linters,omitempty" validate:"dive"`
	Policies map[string]lint.RulePolicy `yaml:"policies,omitempty"`

	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LinterOverride replaces fields of a language's linter configuration.
// Languages with no built-in linter need Command and Extensions.
type LinterOverride struct {
	Command    string        `yaml:"command,omitempty"`
	Args       []string      `yaml:"args,omitempty"`
	StdinArgs  []string      `yaml:"stdin_args,omitempty"`
	Extensions []string      `yaml:"extensions,omitempty" validate:"dive,startswith=."`
	Timeout    time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	Target     string        `yaml:"target,omitempty" validate:"omitempty,oneof=files packages"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

// TelemetryConfig configures trace and metric export.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter,omitempty" validate:"omitempty,oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter,omitempty" validate:"omitempty,oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty" validate:"omitempty,hostname_port"`
	OTLPInsecure   bool   `yaml:"otlp_insecure,omitempty"`

	// MetricsFile receives Prometheus text exposition when the metric
	// exporter is "prometheus".
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Format: "stylish",
		Log:    LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("glob", validateGlob); err != nil {
		panic(fmt.Sprintf("config: failed to register glob validation: %v", err))
	}
}

// validateGlob accepts doublestar patterns.
func validateGlob(fl validator.FieldLevel) bool {
	return doublestar.ValidatePattern(fl.Field().String())
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errs.Configuration("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return errs.Configuration("invalid configuration: %v", err)
	}
	for lang, o := range c.Linters {
		if o.Command == "" && len(o.Extensions) == 0 && len(o.Args) == 0 && len(o.StdinArgs) == 0 && o.Timeout == 0 && o.Target == "" {
			return errs.Configuration("invalid configuration: linters.%s is empty", lang)
		}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Find returns the config file in root, or "" when there is none.
func Find(root string) string {
	for _, name := range FileNames {
		p := filepath.Join(root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads and validates the config at path. A path of "" yields the
// defaults.
//
// Description:
//
//	Unknown keys are rejected so typos surface. Environment overrides are
//	applied before validation.
//
// Inputs:
//
//	path - The config file, or ""
//	getenv - Environment lookup, usually os.Getenv; nil skips overrides
//
// Outputs:
//
//	*Config - The loaded configuration
//	error - errs.ErrConfiguration for unreadable, malformed or invalid files
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errs.Configuration("config file %s does not exist", path)
			}
			return nil, errs.Configuration("failed to read config file %s: %v", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, errs.Configuration("%s: %v", path, err)
		}
	}
	if getenv != nil {
		cfg.ApplyEnv(getenv)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("DELTALINT_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("OTEL_TRACES_EXPORTER"); v != "" {
		c.Telemetry.TraceExporter = strings.ToLower(v)
	}
	if v := getenv("OTEL_METRICS_EXPORTER"); v != "" {
		c.Telemetry.MetricExporter = strings.ToLower(v)
	}
	if v := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		switch {
		case strings.HasPrefix(v, "http://"):
			c.Telemetry.OTLPInsecure = true
			v = strings.TrimPrefix(v, "http://")
		case strings.HasPrefix(v, "https://"):
			v = strings.TrimPrefix(v, "https://")
		}
		c.Telemetry.OTLPEndpoint = strings.TrimSuffix(v, "/")
	}
}

// Marshal encodes the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Write validates the config and writes it to path.
func (c *Config) Write(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// ENGINE WIRING
// =============================================================================

// Apply merges linter overrides and policies into the registries.
//
// Description:
//
//	Set fields replace the built-in ones. Overriding Args discards the
//	built-in version-specific argument sets. A language with no built-in
//	linter is added when its override names a command and extensions.
//
// Outputs:
//
//	error - errs.ErrConfiguration for an incomplete new language
func (c *Config) Apply(configs *lint.ConfigRegistry, policies *lint.PolicyRegistry) error {
	for lang, o := range c.Linters {
		base := configs.Get(lang)
		if base == nil {
			if o.Command == "" || len(o.Extensions) == 0 {
				return errs.Configuration("linters.%s: a new language needs command and extensions", lang)
			}
			base = &lint.LinterConfig{
				Language: lang,
				Timeout:  time.Minute,
				Target:   lint.TargetFiles,
			}
		}
		if o.Command != "" {
			base.Command = o.Command
		}
		if o.Args != nil {
			base.Args = o.Args
			base.Legacy = nil
		}
		if o.StdinArgs != nil {
			base.StdinArgs = o.StdinArgs
		}
		if o.Extensions != nil {
			base.Extensions = o.Extensions
		}
		if o.Timeout > 0 {
			base.Timeout = o.Timeout
		}
		if o.Target != "" {
			base.Target = lint.Target(o.Target)
		}
		configs.Register(base)
	}
	for lang, p := range c.Policies {
		policy := p
		policies.Register(lang, &policy)
	}
	return nil
}
