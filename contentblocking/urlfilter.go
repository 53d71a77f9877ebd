package contentblocking

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/blockengine/rules"
)

// Regular expressions the pattern masks are translated into.  WebKit supports
// neither alternation nor the end-of-input alternative of the separator, so
// these differ from the ones used for matching.
const (
	cbRegexStartURL     = `^[^:]+:(//)?([^/]+\.)?`
	cbRegexSeparator    = `[^a-zA-Z0-9_.%-]`
	cbRegexEndSeparator = `([^a-zA-Z0-9_.%-].*)?$`
)

// unsupportedRegexp are the regular expression constructs WebKit doesn't
// support.
var unsupportedRegexp = []string{
	"|", "{", "}", "(?",
	`\d`, `\D`, `\w`, `\W`, `\s`, `\S`, `\b`, `\B`,
}

// cbSpecialCharsReplacer escapes the characters that have a special meaning
// in the WebKit regular expressions.
var cbSpecialCharsReplacer = strings.NewReplacer(
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
	`\`, `\\`,
	"|", `\|`,
)

// urlFilter converts a basic rule pattern into the url-filter of a trigger.
func urlFilter(pattern string) (filter string, err error) {
	if !isASCII(pattern) {
		return "", fmt.Errorf("%w: non-ascii pattern", errUnsupported)
	}

	switch pattern {
	case "", rules.MaskStartURL, rules.MaskPipe, rules.MaskAnyCharacter:
		return urlFilterAny, nil
	}

	if len(pattern) > 1 && strings.HasPrefix(pattern, rules.MaskRegex) &&
		strings.HasSuffix(pattern, rules.MaskRegex) {
		return regexpFilter(pattern[1 : len(pattern)-1])
	}

	var prefix, suffix string
	switch {
	case strings.HasPrefix(pattern, rules.MaskStartURL):
		prefix, pattern = cbRegexStartURL, pattern[len(rules.MaskStartURL):]
	case strings.HasPrefix(pattern, rules.MaskPipe):
		prefix, pattern = "^", pattern[len(rules.MaskPipe):]
	}

	switch {
	case strings.HasSuffix(pattern, rules.MaskPipe):
		suffix, pattern = "$", pattern[:len(pattern)-len(rules.MaskPipe)]
	case strings.HasSuffix(pattern, rules.MaskSeparator):
		suffix, pattern = cbRegexEndSeparator, pattern[:len(pattern)-len(rules.MaskSeparator)]
	}

	filter = cbSpecialCharsReplacer.Replace(pattern)
	filter = strings.ReplaceAll(filter, rules.MaskAnyCharacter, ".*")
	filter = strings.ReplaceAll(filter, rules.MaskSeparator, cbRegexSeparator)

	return prefix + filter + suffix, nil
}

// regexpFilter checks that expr only uses the constructs WebKit supports.
func regexpFilter(expr string) (filter string, err error) {
	for _, c := range unsupportedRegexp {
		if strings.Contains(expr, c) {
			return "", fmt.Errorf("%w: %q in regular expression", errUnsupported, c)
		}
	}

	return expr, nil
}

// isASCII returns true if s only contains ASCII characters.
func isASCII(s string) (ok bool) {
	for i := range len(s) {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}
