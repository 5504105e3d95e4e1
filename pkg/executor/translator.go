package executor

import (
	"regexp"
	"strings"
)

// Translator rewrites source-dialect SQL into the engine dialect.
type Translator interface {
	Translate(sql string) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(sql string) (string, error)

func (f TranslatorFunc) Translate(sql string) (string, error) { return f(sql) }

// Rule replaces every match of Pattern with Replacement.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// DefaultRules covers the source-dialect functions the engine lacks.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "iff", Pattern: regexp.MustCompile(`(?i)\bIFF\s*\(`), Replacement: "IIF("},
		{Name: "nvl", Pattern: regexp.MustCompile(`(?i)\bNVL\s*\(`), Replacement: "IFNULL("},
		{Name: "current_timestamp", Pattern: regexp.MustCompile(`(?i)\bCURRENT_TIMESTAMP\s*\(\s*\)`), Replacement: "CURRENT_TIMESTAMP"},
	}
}

// RuleTranslator applies rules in order. String literals are left untouched.
type RuleTranslator struct {
	rules []Rule
}

// NewRuleTranslator returns a translator with DefaultRules when none are given.
func NewRuleTranslator(rules ...Rule) *RuleTranslator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &RuleTranslator{rules: rules}
}

// Translate implements Translator.
func (t *RuleTranslator) Translate(sql string) (string, error) {
	if strings.TrimSpace(sql) == "" {
		return "", ErrEmptyStatement
	}

	var b strings.Builder
	b.Grow(len(sql))
	for i, seg := range splitQuoted(sql) {
		// Odd segments are quoted literals.
		if i%2 == 1 {
			b.WriteString(seg)
			continue
		}
		for _, r := range t.rules {
			seg = r.Pattern.ReplaceAllString(seg, r.Replacement)
		}
		b.WriteString(seg)
	}
	return b.String(), nil
}

// splitQuoted splits s into alternating unquoted and single-quoted parts.
// The result always starts with an unquoted part, possibly empty.
func splitQuoted(s string) []string {
	var parts []string
	start, inQuote := 0, false
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if inQuote {
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			parts = append(parts, s[start:i+1])
			start, inQuote = i+1, false
			continue
		}
		parts = append(parts, s[start:i])
		start, inQuote = i, true
	}
	parts = append(parts, s[start:])
	return parts
}

// IsWrite reports whether sql is a data or schema modifying statement.
// It is a lexical prefix check: leading comments and multi-statement batches
// are not recognized.
func IsWrite(sql string) bool {
	s := strings.ToUpper(strings.TrimSpace(sql))
	for _, kw := range writeKeywords {
		if strings.HasPrefix(s, kw) {
			return true
		}
	}
	return false
}

var writeKeywords = []string{"CREATE", "INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "COPY"}
