package scan

import "regexp"

// Matcher decides whether a full path is excluded from the scan.
type Matcher interface {
	Match(path string) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(path string) bool

// Match calls f(path).
func (f MatcherFunc) Match(path string) bool { return f(path) }

// PatternMatcher excludes paths matching any of its regular expressions.
type PatternMatcher []*regexp.Regexp

// CompilePatterns builds a PatternMatcher from pattern strings.
func CompilePatterns(patterns ...string) (PatternMatcher, error) {
	m := make(PatternMatcher, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		m = append(m, re)
	}
	return m, nil
}

// Match reports whether path matches one of the patterns.
func (m PatternMatcher) Match(path string) bool {
	for _, re := range m {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
