// Package idnorm implements the record-id normalizer of spec.md §
// 4.5 / C5: strip a configured prefix, then apply an ordered pipeline
// of regex rewrite rules.
package idnorm

import (
	"regexp"
	"strings"

	"github.com/mshroom/RecordManager/internal/record"
)

// Normalizer compiles a source's id-prefix and rewrite rules once and
// applies them to every harvested identifier.
type Normalizer struct {
	prefix string
	rules  []compiledRule
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// New compiles prefix/rules into a Normalizer. Rules are applied in
// the order given — this is position-correlated with the source
// config's idSearch/idReplace lists and must never be reordered.
func New(prefix string, rules []record.RewriteRule) (*Normalizer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(stripSlashDelims(r.Pattern))
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{pattern: re, replacement: r.Replacement})
	}
	return &Normalizer{prefix: prefix, rules: compiled}, nil
}

// stripSlashDelims accepts config patterns written PCRE-style with
// slash delimiters, e.g. "/^abc/", and returns the bare regexp body
// regexp.Compile expects. A pattern with no delimiters passes through
// unchanged.
func stripSlashDelims(pattern string) string {
	if len(pattern) >= 2 && pattern[0] == '/' && pattern[len(pattern)-1] == '/' {
		return pattern[1 : len(pattern)-1]
	}
	return pattern
}

// Normalize strips the configured prefix from id (if it is a leading
// match) then applies each rewrite rule in order.
func (n *Normalizer) Normalize(id string) string {
	out := strings.TrimPrefix(id, n.prefix)
	for _, r := range n.rules {
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	return out
}
