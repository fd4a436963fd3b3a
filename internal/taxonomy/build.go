package taxonomy

import (
	"context"
	"fmt"

	"github.com/roach88/bookmerge/internal/assign"
	"github.com/roach88/bookmerge/internal/catalog"
	"github.com/roach88/bookmerge/internal/classify"
	"github.com/roach88/bookmerge/internal/oracle"
)

// Overrides returns the override chain: the root detector (when enabled)
// followed by the domain sets in declared order.
func (t *Taxonomy) Overrides() []classify.Override {
	var out []classify.Override
	if t.RootDomain.Enabled {
		out = append(out, classify.Override{
			Labeler: &classify.RootDomainDetector{Group: t.RootDomain.Label, MaxQuery: t.RootDomain.MaxQueryLength},
			Via:     catalog.ViaRoot,
		})
	}
	if len(t.Domains) > 0 {
		sets := make([]classify.DomainSet, len(t.Domains))
		for i, d := range t.Domains {
			sets[i] = classify.DomainSet{Label: d.Label, Domains: d.Domains}
		}
		out = append(out, classify.Override{
			Labeler: classify.NewDomainClassifier(sets...),
			Via:     catalog.ViaDomain,
		})
	}
	return out
}

// RuleClassifier compiles the keyword table.
func (t *Taxonomy) RuleClassifier() (*classify.RuleClassifier, error) {
	rules := make([]classify.Rule, len(t.Rules))
	for i, r := range t.Rules {
		rules[i] = classify.Rule{Label: r.Label, Keywords: r.Keywords, When: r.When}
	}
	return classify.NewRuleClassifier(rules, t.DefaultLabel)
}

// AssignOptions returns the group ordering options. visibility comes from
// the merged source groups and may be nil.
func (t *Taxonomy) AssignOptions(visibility map[string]int) assign.Options {
	return assign.Options{
		PinnedFirst: t.Groups.PinnedFirst,
		PinnedLast:  t.Groups.PinnedLast,
		Declared:    t.Groups.Declared,
		Visibility:  visibility,
	}
}

// OracleConfig returns the batching and recovery settings.
func (t *Taxonomy) OracleConfig() oracle.Config {
	o := t.Oracle
	return oracle.Config{
		Labels:       o.Labels,
		DefaultLabel: t.DefaultLabel,
		BatchSize:    o.BatchSize,
		MaxAttempts:  o.MaxAttempts,
		Backoff:      o.Backoff,
		Delay:        o.Delay,
		Parallelism:  o.Parallelism,
	}
}

// NewCompleter builds the backend for the configured provider.
func (t *Taxonomy) NewCompleter(ctx context.Context, apiKey string) (oracle.Completer, error) {
	o := t.Oracle
	switch o.Provider {
	case ProviderDeepSeek, ProviderOpenAI:
		cfg := oracle.DefaultChatConfig(apiKey)
		if o.Provider == ProviderOpenAI {
			cfg.BaseURL = "https://api.openai.com/v1"
			cfg.Model = "gpt-4o-mini"
		}
		if o.BaseURL != "" {
			cfg.BaseURL = o.BaseURL
		}
		if o.Model != "" {
			cfg.Model = o.Model
		}
		cfg.Temperature = o.Temperature
		cfg.MaxTokens = o.MaxTokens
		cfg.Timeout = o.Timeout
		return oracle.NewChatClient(cfg), nil
	case ProviderOllama:
		return oracle.NewOllamaClient(o.BaseURL, o.Model, o.Temperature, o.Timeout), nil
	case ProviderGemini:
		return oracle.NewGeminiClient(ctx, apiKey, o.Model, float32(o.Temperature), o.Timeout)
	}
	return nil, fmt.Errorf("unknown oracle provider %q", o.Provider)
}

// DefaultConfigs returns the configured default config entries in order.
func (t *Taxonomy) DefaultConfigs() catalog.Configs {
	var out catalog.Configs
	for _, c := range t.Configs {
		out.Add(c.Key, c.Value)
	}
	return out
}
