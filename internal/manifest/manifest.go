// Package manifest loads YAML files that map environment variables to
// keychain items.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envNameRe = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// Manifest is the top-level structure of a manifest file.
type Manifest struct {
	// Service is the default service for refs that do not name one.
	Service string               `yaml:"service,omitempty"`
	Secrets map[string]SecretRef `yaml:"secrets"`
}

// SecretRef points an environment variable at a keychain item.
type SecretRef struct {
	Service       string   `yaml:"service,omitempty"`
	Account       string   `yaml:"account"`
	RotateEvery   Duration `yaml:"rotate_every,omitempty"`
	RotateCommand string   `yaml:"rotate_command,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling from strings like
// "12h" or "30d".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day "Nd" form.
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return parsed, nil
}

// Load reads, parses and validates a manifest from a YAML file.
func Load(path string) (*Manifest, error) {
	m, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validating manifest %s: %w", path, err)
	}
	return m, nil
}

// Read parses a manifest without validating it, so callers can fill in a
// default service first.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &m, nil
}

// Files lists the YAML manifests in dir.
func Files(dir string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing manifests in %s: %w", dir, err)
	}

	// Also match .yml
	ymlEntries, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("listing manifests in %s: %w", dir, err)
	}
	return append(entries, ymlEntries...), nil
}

// Validate checks that a manifest is well-formed.
func (m *Manifest) Validate() error {
	if len(m.Secrets) == 0 {
		return fmt.Errorf("secrets must list at least one entry")
	}
	for _, name := range m.EnvNames() {
		ref := m.Secrets[name]
		if !envNameRe.MatchString(name) {
			return fmt.Errorf("secrets.%s: name is invalid: must match ^[A-Z_][A-Z0-9_]*$", name)
		}
		if ref.Account == "" {
			return fmt.Errorf("secrets.%s.account is required", name)
		}
		if ref.Service == "" && m.Service == "" {
			return fmt.Errorf("secrets.%s.service is required when no top-level service is set", name)
		}
		if ref.RotateEvery.Duration < 0 {
			return fmt.Errorf("secrets.%s.rotate_every must be positive", name)
		}
	}
	return nil
}

// EnvNames returns the environment variable names in sorted order.
func (m *Manifest) EnvNames() []string {
	names := make([]string, 0, len(m.Secrets))
	for name := range m.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceFor returns the service ref is stored under.
func (m *Manifest) ServiceFor(ref SecretRef) string {
	if ref.Service != "" {
		return ref.Service
	}
	return m.Service
}
