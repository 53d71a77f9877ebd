package rules

import (
	"regexp"
	"strings"
)

// Special characters of the basic rule pattern.
const (
	MaskStartURL     = "||"
	MaskPipe         = "|"
	MaskSeparator    = "^"
	MaskAnyCharacter = "*"
	MaskRegex        = "/"
)

// Regular expressions the pattern masks are translated into.
const (
	RegexAnyCharacter = ".*"
	RegexSeparator    = "([^ a-zA-Z0-9.%_-]|$)"
	RegexStartURL     = "^(http|https|ws|wss)://([a-z0-9-_.]+\\.)?"
	RegexStartString  = "^"
	RegexEndString    = "$"
)

// specialCharsReplacer escapes the characters that have a special meaning in
// regular expressions but not in basic rule patterns.
var specialCharsReplacer = strings.NewReplacer(
	".", `\.`,
	"+", `\+`,
	"?", `\?`,
	"$", `\$`,
	"{", `\{`,
	"}", `\}`,
	"(", `\(`,
	")", `\)`,
	"[", `\[`,
	"]", `\]`,
	"/", `\/`,
	`\`, `\\`,
	"|", `\|`,
)

// RegexpCache provides compiled regular expressions for network rules.
// Implementations must be safe for concurrent use.
type RegexpCache interface {
	// GetOrCompile returns the compiled form of expr, which is the regular
	// expression text of the rule with the given id.  ok is false if expr
	// cannot be compiled, in which case the rule must not match anything.
	GetOrCompile(id uint64, expr string) (re *regexp.Regexp, ok bool)
}

// isRegexPattern returns true if pattern is a regular expression enclosed in
// slashes.
func isRegexPattern(pattern string) (ok bool) {
	return len(pattern) > 1 &&
		strings.HasPrefix(pattern, MaskRegex) &&
		strings.HasSuffix(pattern, MaskRegex)
}

// patternToRegexp converts a basic rule pattern into the text of a regular
// expression.  It returns [RegexAnyCharacter] for patterns matching
// everything.
func patternToRegexp(pattern string) (expr string) {
	switch pattern {
	case MaskStartURL, MaskPipe, MaskAnyCharacter, "":
		return RegexAnyCharacter
	}

	if isRegexPattern(pattern) {
		return pattern[1 : len(pattern)-1]
	}

	var prefix, suffix string
	switch {
	case strings.HasPrefix(pattern, MaskStartURL):
		prefix, pattern = RegexStartURL, pattern[len(MaskStartURL):]
	case strings.HasPrefix(pattern, MaskPipe):
		prefix, pattern = RegexStartString, pattern[len(MaskPipe):]
	}

	if strings.HasSuffix(pattern, MaskPipe) {
		suffix, pattern = RegexEndString, pattern[:len(pattern)-len(MaskPipe)]
	}

	expr = specialCharsReplacer.Replace(pattern)
	expr = strings.ReplaceAll(expr, MaskAnyCharacter, RegexAnyCharacter)
	expr = strings.ReplaceAll(expr, MaskSeparator, RegexSeparator)

	return prefix + expr + suffix
}
