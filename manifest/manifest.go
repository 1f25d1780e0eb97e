// Package manifest loads plugin.yaml files describing how to load and
// configure a plugin module.
//
//	name: whois
//	source: https://plugins.example.com/whois.wasm
//	sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
//	budget: 10s
//	config:
//	  api_key: secret
//	sandbox:
//	  memory_limit_pages: 256
//	  wasi: false
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileNames are the names Load looks for inside a directory, in order.
var FileNames = []string{"plugin.yaml", "plugin.yml"}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
}

// Manifest represents a plugin.yaml file.
type Manifest struct {
	// Name is a display name. Defaults to the source's file name.
	Name string `yaml:"name,omitempty" validate:"omitempty,max=100"`

	// Source is the module URL or path. Relative paths are resolved against
	// the directory holding the manifest.
	Source string `yaml:"source" validate:"required"`

	// SHA256 pins the module bytes to a hex digest.
	SHA256 string `yaml:"sha256,omitempty" validate:"omitempty,len=64,hexadecimal"`

	// Budget bounds every call into the module.
	// Format: Go duration string (e.g., "10s")
	Budget string `yaml:"budget,omitempty" validate:"omitempty,duration"`

	// Config overrides fields declared by the module's default_config.
	Config map[string]string `yaml:"config,omitempty" validate:"omitempty,dive,keys,required,endkeys"`

	// Sandbox tunes the sandbox runtime.
	Sandbox *SandboxConfig `yaml:"sandbox,omitempty"`

	// Fetch bounds remote module downloads.
	Fetch *FetchConfig `yaml:"fetch,omitempty"`

	dir string
}

// SandboxConfig configures the sandbox runtime.
type SandboxConfig struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages.
	// Default: 1024 (64 MiB)
	MemoryLimitPages uint32 `yaml:"memory_limit_pages,omitempty" validate:"omitempty,max=65536"`

	// WASI grants wasi_snapshot_preview1 imports.
	WASI bool `yaml:"wasi,omitempty"`

	// Interpreter selects the interpreter engine.
	Interpreter bool `yaml:"interpreter,omitempty"`
}

// FetchConfig bounds remote module downloads.
type FetchConfig struct {
	// Timeout is a Go duration string. Default: 30s
	Timeout string `yaml:"timeout,omitempty" validate:"omitempty,duration"`

	// MaxBytes caps the module size. Default: 64 MiB
	MaxBytes int64 `yaml:"max_bytes,omitempty" validate:"omitempty,min=1"`
}

// GetBudget parses the budget. Zero means the host default.
func (m *Manifest) GetBudget() time.Duration {
	if m == nil || m.Budget == "" {
		return 0
	}
	d, err := time.ParseDuration(m.Budget)
	if err != nil {
		return 0
	}
	return d
}

// GetTimeout parses the fetch timeout. Zero means the fetcher default.
func (f *FetchConfig) GetTimeout() time.Duration {
	if f == nil || f.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// ResolvedSource returns Source with relative paths anchored at the manifest's
// directory.
func (m *Manifest) ResolvedSource() string {
	if m.dir == "" || strings.Contains(m.Source, "://") || filepath.IsAbs(m.Source) {
		return m.Source
	}
	return filepath.Join(m.dir, m.Source)
}

// Validate checks the manifest's fields.
func (m *Manifest) Validate() error {
	if m == nil {
		return errors.New("manifest cannot be nil")
	}
	if err := validate.Struct(m); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Parse decodes and validates manifest YAML. Relative sources stay relative.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Load reads and parses a plugin.yaml file from the given path.
// If the path is a directory, it looks for plugin.yaml or plugin.yml in that directory.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	manifestPath := path
	if info.IsDir() {
		manifestPath = ""
		for _, name := range FileNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				manifestPath = candidate
				break
			}
		}
		if manifestPath == "" {
			return nil, fmt.Errorf("no %s found in %s", strings.Join(FileNames, " or "), path)
		}
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}
	m.dir = filepath.Dir(manifestPath)
	return m, nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "len":
			return fmt.Errorf("%s: must be %s characters long", field, e.Param())
		case "hexadecimal":
			return fmt.Errorf("%s: must be hexadecimal", field)
		case "duration":
			return fmt.Errorf("%s: %q is not a duration", field, e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
