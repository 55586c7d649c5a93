package reply

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Rule maps a glob pattern over comment text to a canned reply.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Reply   string `yaml:"reply"`
}

type compiledRule struct {
	pattern glob.Glob
	reply   string
}

// RuleMatcher finds the first rule whose pattern matches a comment.
// Matching is case-insensitive and ignores surrounding whitespace.
type RuleMatcher struct {
	rules []compiledRule
}

// NewRuleMatcher compiles rules in order.
func NewRuleMatcher(rules []Rule) (*RuleMatcher, error) {
	m := &RuleMatcher{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Reply == "" {
			return nil, fmt.Errorf("rule %d (%q): empty reply", i, r.Pattern)
		}
		g, err := glob.Compile(strings.ToLower(r.Pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid rule pattern '%s': %w", r.Pattern, err)
		}
		m.rules = append(m.rules, compiledRule{pattern: g, reply: r.Reply})
	}
	return m, nil
}

// Match returns the reply of the first matching rule.
func (m *RuleMatcher) Match(content string) (string, bool) {
	if m == nil {
		return "", false
	}
	content = strings.ToLower(strings.TrimSpace(content))
	if content == "" {
		return "", false
	}
	for _, r := range m.rules {
		if r.pattern.Match(content) {
			return r.reply, true
		}
	}
	return "", false
}

// Len returns the number of rules.
func (m *RuleMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}
