package rules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/blockengine/internal/ufnet"
	"github.com/AdguardTeam/golibs/errors"
)

// RuleSyntaxError represents an error while parsing a filtering rule.
type RuleSyntaxError struct {
	// err is the underlying error.  It is never nil.
	err error

	// ruleText is the text of the rule that failed to parse.
	ruleText string
}

// type check
var _ errors.Wrapper = (*RuleSyntaxError)(nil)

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	return fmt.Sprintf("syntax error: %s, rule: %s", e.err, e.ruleText)
}

// Unwrap implements the [errors.Wrapper] interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Unwrap() (unwrapped error) {
	return e.err
}

const (
	// ErrUnsupportedRule signals that this might be a valid rule type, but it
	// is not supported by this library.
	ErrUnsupportedRule errors.Error = "this type of rules is unsupported"

	// ErrImportantException is returned for exception rules with the
	// $important modifier.  Exceptions cannot override important blocking
	// rules, so such rules are refused.
	ErrImportantException errors.Error = "$important cannot be used in an exception rule"
)

// PermissionMask is a set of bits describing which trust tiers the filter list
// a rule comes from belongs to.  The zero value grants no permissions.
type PermissionMask uint8

// Has returns true if m contains every bit of required.
func (m PermissionMask) Has(required PermissionMask) (ok bool) {
	return m&required == required
}

// Rule is a base interface for all filtering rules
type Rule interface {
	// Text returns the original rule text
	Text() string

	// GetFilterListID returns ID of the filter list this rule belongs to
	GetFilterListID() int
}

// NewRule creates a new filtering rule from the specified line.  It returns
// nil if the line is empty or if it is a comment.  Any returned error is a
// *RuleSyntaxError.
func NewRule(line string, filterListID int) (r Rule, err error) {
	line = strings.TrimSpace(line)

	if line == "" || isComment(line) {
		return nil, nil
	}

	if isCosmetic(line) {
		r, err = NewCosmeticRule(line, filterListID)
	} else {
		r, err = NewNetworkRule(line, filterListID)
	}

	if err != nil {
		return nil, &RuleSyntaxError{err: err, ruleText: line}
	}

	return r, nil
}

// isComment checks if the line is a comment
func isComment(line string) bool {
	switch line[0] {
	case '!':
		return true
	case '[':
		// "[Adblock Plus 2.0]" headers.
		return strings.HasSuffix(line, "]")
	case '#':
		if len(line) == 1 {
			return true
		}

		// Now we should check that this is not a cosmetic rule
		for _, marker := range cosmeticRulesMarkers {
			if strings.HasPrefix(line, marker) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// loadDomains loads $domain modifier or cosmetic rules domains.  sep is the
// separator, for network rules it is "|", for cosmetic it is ",".
func loadDomains(domains, sep string) (permitted, restricted []string, err error) {
	if domains == "" {
		return nil, nil, errors.Error("no domains specified")
	}

	for _, d := range strings.Split(domains, sep) {
		isRestricted := strings.HasPrefix(d, "~")
		if isRestricted {
			d = d[1:]
		}

		d = strings.ToLower(d)
		if !ufnet.IsDomainName(d) && !isWildcardDomain(d) {
			return nil, nil, fmt.Errorf("invalid domain specified: %s", domains)
		}

		if isRestricted {
			restricted = append(restricted, d)
		} else {
			permitted = append(permitted, d)
		}
	}

	return permitted, restricted, nil
}

// isWildcardDomain returns true if d is an entity domain like "example.*".
func isWildcardDomain(d string) (ok bool) {
	return len(d) > 2 && strings.HasSuffix(d, ".*")
}
