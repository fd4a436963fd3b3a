package taxonomy

import (
	"fmt"
	"strings"

	"github.com/roach88/bookmerge/internal/classify"
)

// maxAttempts bounds oracle.max_attempts; with the backoff capped, more
// retries only stretch a failing run.
const maxAttempts = 10

// Validate checks that the taxonomy can drive a run.
func (t *Taxonomy) Validate() error {
	if strings.TrimSpace(t.DefaultLabel) == "" {
		return fmt.Errorf("default_label is required")
	}

	for _, list := range []struct {
		name  string
		names []string
	}{
		{"groups.pinned_first", t.Groups.PinnedFirst},
		{"groups.pinned_last", t.Groups.PinnedLast},
		{"groups.declared", t.Groups.Declared},
	} {
		for i, n := range list.names {
			if strings.TrimSpace(n) == "" {
				return fmt.Errorf("%s[%d]: group name is required", list.name, i)
			}
		}
	}
	for _, n := range t.Groups.PinnedFirst {
		if contains(t.Groups.PinnedLast, n) {
			return fmt.Errorf("groups: %q is pinned both first and last", n)
		}
	}

	if t.RootDomain.Enabled && strings.TrimSpace(t.RootDomain.Label) == "" {
		return fmt.Errorf("root_domain.label is required when root_domain is enabled")
	}
	if t.RootDomain.MaxQueryLength < 0 {
		return fmt.Errorf("root_domain.max_query_length must not be negative")
	}

	for i, d := range t.Domains {
		if strings.TrimSpace(d.Label) == "" {
			return fmt.Errorf("domains[%d]: label is required", i)
		}
		if len(d.Domains) == 0 {
			return fmt.Errorf("domains[%d] (%s): domains list is required and must be non-empty", i, d.Label)
		}
	}

	for i, r := range t.Rules {
		if strings.TrimSpace(r.Label) == "" {
			return fmt.Errorf("rules[%d]: label is required", i)
		}
		if len(r.Keywords) == 0 && r.When == "" {
			return fmt.Errorf("rules[%d] (%s): keywords or when is required", i, r.Label)
		}
		if r.When != "" {
			if _, err := classify.CompilePredicate(r.When); err != nil {
				return fmt.Errorf("rules[%d] (%s): when: %w", i, r.Label, err)
			}
		}
	}

	if err := t.Oracle.validate(); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}

	for i, c := range t.Configs {
		if c.Key == "" {
			return fmt.Errorf("configs[%d]: key is required", i)
		}
	}

	return nil
}

func (o *Oracle) validate() error {
	switch o.Provider {
	case ProviderDeepSeek, ProviderOpenAI, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q (want deepseek, openai, ollama or gemini)", o.Provider)
	}
	for i, l := range o.Labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("labels[%d]: label is required", i)
		}
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", o.BatchSize)
	}
	if o.MaxAttempts <= 0 || o.MaxAttempts > maxAttempts {
		return fmt.Errorf("max_attempts must be between 1 and %d, got %d", maxAttempts, o.MaxAttempts)
	}
	if o.Backoff < 0 {
		return fmt.Errorf("backoff must not be negative")
	}
	if o.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}
	if o.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
