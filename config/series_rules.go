package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Series rule actions
const (
	SeriesRecord = "RECORD"
	SeriesSkip   = "SKIP"
)

// SeriesRule decides whether matching history series are recorded
type SeriesRule struct {
	Series string `yaml:"series"` // Pattern: literal string or /regexp/
	Action string `yaml:"action"` // RECORD or SKIP
}

// PatternMatcher matches strings either exactly or via regexp
type PatternMatcher interface {
	Match(s string) bool
}

type literalMatcher string

func (m literalMatcher) Match(s string) bool {
	return string(m) == s
}

type regexpMatcher struct {
	re *regexp.Regexp
}

func (m *regexpMatcher) Match(s string) bool {
	return m.re.MatchString(s)
}

// parsePattern returns a matcher for literal strings or /regexp/ patterns.
// Regexp patterns are anchored to match the full string.
func parsePattern(pattern string) (PatternMatcher, error) {
	if strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) > 1 {
		re, err := regexp.Compile("^(?:" + pattern[1:len(pattern)-1] + ")$")
		if err != nil {
			return nil, err
		}
		return &regexpMatcher{re: re}, nil
	}
	return literalMatcher(pattern), nil
}

type compiledSeriesRule struct {
	matcher PatternMatcher
	record  bool
}

// SeriesFilter selects the history series worth keeping. Rules are evaluated
// top to bottom; a series no rule matches is recorded.
type SeriesFilter struct {
	rules []compiledSeriesRule
}

// NewSeriesFilter compiles rules. It returns nil, nil for an empty rule list.
func NewSeriesFilter(rules []SeriesRule) (*SeriesFilter, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	f := &SeriesFilter{rules: make([]compiledSeriesRule, 0, len(rules))}
	for i, rule := range rules {
		if rule.Series == "" {
			return nil, fmt.Errorf("series rule %d: series pattern is required", i)
		}
		m, err := parsePattern(rule.Series)
		if err != nil {
			return nil, fmt.Errorf("invalid series pattern in rule %d: %w", i, err)
		}
		var record bool
		switch strings.ToUpper(rule.Action) {
		case SeriesRecord:
			record = true
		case SeriesSkip:
		default:
			return nil, fmt.Errorf("invalid action in series rule %d: %q", i, rule.Action)
		}
		f.rules = append(f.rules, compiledSeriesRule{matcher: m, record: record})
	}
	return f, nil
}

// Allow reports whether series should be recorded. A nil filter allows
// everything.
func (f *SeriesFilter) Allow(series string) bool {
	if f == nil {
		return true
	}
	for _, rule := range f.rules {
		if rule.matcher.Match(series) {
			return rule.record
		}
	}
	return true
}

// NewSeriesFilter compiles the history series rules of the config.
func (c *Config) NewSeriesFilter() (*SeriesFilter, error) {
	return NewSeriesFilter(c.History.Rules)
}
