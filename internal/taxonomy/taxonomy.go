// Package taxonomy loads the classification configuration: keyword rules,
// domain sets, pinned groups, oracle settings and default configs.
//
// A taxonomy is YAML decoded strictly (unknown fields are errors). The
// default taxonomy is embedded and reproduces the navigation site's original
// categories.
package taxonomy

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Taxonomy is the complete classification configuration.
type Taxonomy struct {
	// DefaultLabel is the group for records nothing else claims.
	DefaultLabel string `yaml:"default_label"`

	Groups     Groups      `yaml:"groups"`
	RootDomain RootDomain  `yaml:"root_domain"`
	Domains    []DomainSet `yaml:"domains"`
	Rules      []Rule      `yaml:"rules"`
	Oracle     Oracle      `yaml:"oracle"`
	Icons      Icons       `yaml:"icons"`

	// Configs are added to the catalog for keys no snapshot provides.
	Configs []ConfigEntry `yaml:"configs,omitempty"`
}

// Groups controls group existence and ordering.
type Groups struct {
	PinnedFirst []string `yaml:"pinned_first"`
	PinnedLast  []string `yaml:"pinned_last"`
	Declared    []string `yaml:"declared"`
}

// RootDomain configures the homepage override.
type RootDomain struct {
	Enabled        bool   `yaml:"enabled"`
	Label          string `yaml:"label"`
	MaxQueryLength int    `yaml:"max_query_length"`
}

// DomainSet routes every URL under one of Domains to Label.
type DomainSet struct {
	Label   string   `yaml:"label"`
	Domains []string `yaml:"domains"`
}

// Rule is one keyword table entry. When is an optional expression over
// name, url, host and path.
type Rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
	When     string   `yaml:"when,omitempty"`
}

// Oracle configures the external classifier.
type Oracle struct {
	// Provider is one of deepseek, openai, ollama or gemini.
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Labels      []string      `yaml:"labels"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	Delay       time.Duration `yaml:"delay"`
	Parallelism int           `yaml:"parallelism"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// Icons controls favicon filling for records without an icon.
type Icons struct {
	Fill bool   `yaml:"fill"`
	API  string `yaml:"api"`
}

// ConfigEntry is one default config value.
type ConfigEntry struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Provider names.
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderGemini   = "gemini"
)

// Default returns a fresh copy of the embedded taxonomy.
func Default() *Taxonomy {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy is invalid: %v", err))
	}
	return t
}

// DefaultYAML returns the embedded taxonomy source.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

// Load reads and validates a taxonomy file.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a taxonomy. Unknown fields are rejected and
// zero oracle settings get their defaults.
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	t.applyDefaults()

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid taxonomy: %w", err)
	}
	return &t, nil
}

func (t *Taxonomy) applyDefaults() {
	if t.DefaultLabel == "" {
		t.DefaultLabel = "Other"
	}
	if t.RootDomain.MaxQueryLength == 0 {
		t.RootDomain.MaxQueryLength = 20
	}
	o := &t.Oracle
	if o.Provider == "" {
		o.Provider = ProviderDeepSeek
	}
	if o.BatchSize == 0 {
		o.BatchSize = 20
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff == 0 {
		o.Backoff = time.Second
	}
	if o.Delay == 0 {
		o.Delay = time.Second
	}
	if o.Parallelism == 0 {
		o.Parallelism = 1
	}
	if o.Timeout == 0 {
		o.Timeout = 60 * time.Second
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 2000
	}
	if !contains(o.Labels, t.DefaultLabel) {
		o.Labels = append(o.Labels, t.DefaultLabel)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
