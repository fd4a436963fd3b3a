package classify

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/text/cases"

	"github.com/roach88/bookmerge/internal/catalog"
)

// Rule maps keywords (and optionally a predicate) to a label.
type Rule struct {
	Label    string
	Keywords []string

	// When is an optional expr-lang boolean expression over name, url, host
	// and path. The rule matches if any keyword matches or When is true.
	When string
}

// RuleEnv is the environment rule predicates are evaluated against.
type RuleEnv struct {
	Name string `expr:"name"`
	URL  string `expr:"url"`
	Host string `expr:"host"`
	Path string `expr:"path"`
}

type compiledRule struct {
	label    string
	keywords []string // case folded
	when     *vm.Program
}

// RuleClassifier is an ordered keyword table. Table order matters: the first
// rule with a hit wins, not the best one.
type RuleClassifier struct {
	rules        []compiledRule
	defaultLabel string
}

// NewRuleClassifier compiles rules. Empty keywords are ignored. An empty
// defaultLabel means catalog.DefaultLabel.
func NewRuleClassifier(rules []Rule, defaultLabel string) (*RuleClassifier, error) {
	if defaultLabel == "" {
		defaultLabel = catalog.DefaultLabel
	}
	rc := &RuleClassifier{defaultLabel: defaultLabel}
	for i, r := range rules {
		if r.Label == "" {
			return nil, fmt.Errorf("rule %d: label is required", i)
		}
		cr := compiledRule{label: r.Label}
		for _, kw := range r.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				cr.keywords = append(cr.keywords, fold(kw))
			}
		}
		if r.When != "" {
			program, err := CompilePredicate(r.When)
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): %w", i, r.Label, err)
			}
			cr.when = program
		}
		rc.rules = append(rc.rules, cr)
	}
	return rc, nil
}

// CompilePredicate compiles a rule predicate against RuleEnv.
func CompilePredicate(src string) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile predicate %q: %w", src, err)
	}
	return program, nil
}

// Match returns the first matching rule's label, or the default label.
func (rc *RuleClassifier) Match(name, url string) string {
	if label, ok := rc.match(name, url); ok {
		return label
	}
	return rc.defaultLabel
}

// Label implements Labeler.
func (rc *RuleClassifier) Label(rec catalog.Record) (string, bool) {
	return rc.match(rec.Name, rec.URL)
}

// DefaultLabel returns the label used when no rule matches.
func (rc *RuleClassifier) DefaultLabel() string {
	return rc.defaultLabel
}

func (rc *RuleClassifier) match(name, url string) (string, bool) {
	foldedName := fold(name)
	foldedURL := fold(url)

	var env *RuleEnv
	for _, r := range rc.rules {
		for _, kw := range r.keywords {
			if strings.Contains(foldedName, kw) || strings.Contains(foldedURL, kw) {
				return r.label, true
			}
		}
		if r.when == nil {
			continue
		}
		if env == nil {
			env = newRuleEnv(name, url)
		}
		out, err := expr.Run(r.when, *env)
		if err != nil {
			continue
		}
		if hit, _ := out.(bool); hit {
			return r.label, true
		}
	}
	return "", false
}

func newRuleEnv(name, rawURL string) *RuleEnv {
	env := &RuleEnv{Name: name, URL: rawURL}
	if u, ok := parseURL(rawURL); ok {
		env.Host = Host(u)
		env.Path = u.Path
	}
	return env
}

// fold applies Unicode case folding. A Caser is stateful, so each call gets
// its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
