package rules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// CosmeticRuleType is the enumeration of different cosmetic rules
type CosmeticRuleType uint

// CosmeticRuleType enumeration
const (
	// CosmeticElementHiding is the ## rule that hides elements matching the
	// selector.
	CosmeticElementHiding CosmeticRuleType = iota

	// CosmeticProcedural is the #?# rule, or a ## rule with procedural
	// operators, that the page script has to evaluate.
	CosmeticProcedural

	// CosmeticCSS is the #$# rule that applies a style to the selected
	// elements.
	CosmeticCSS

	// CosmeticScriptlet is the ##+js(...) rule that injects a scriptlet
	// resource into the page.
	CosmeticScriptlet
)

// cosmeticRulesMarkers are the markers of cosmetic rules.  They are sorted by
// length, longest first, so that the first prefix match is the right one.
var cosmeticRulesMarkers = []string{
	"#@$?#", "#@%#", "#@$#", "#@?#",
	"#$?#", "#%#", "#$#", "#?#", "#@#", "##",
}

// htmlRulesMarkers are the markers of HTML filtering rules.
var htmlRulesMarkers = []string{"$@$", "$$"}

// scriptletPrefix is the prefix of the scriptlet rule content.
const scriptletPrefix = "+js("

// proceduralOperators are the extended CSS pseudo-classes that browsers don't
// support natively.
var proceduralOperators = []string{
	":-abp-contains(",
	":-abp-has(",
	":contains(",
	":has-text(",
	":matches-attr(",
	":matches-css(",
	":matches-css-after(",
	":matches-css-before(",
	":matches-path(",
	":min-text-length(",
	":nth-ancestor(",
	":others(",
	":remove(",
	":style(",
	":upward(",
	":watch-attr(",
	":xpath(",
}

// CosmeticRule represents a cosmetic rule (element hiding, CSS, scriptlet).
type CosmeticRule struct {
	RuleText string // RuleText is the original rule text

	// Content is the rule content after the marker: a selector, a selector
	// with a style block, or a scriptlet call.
	Content string

	// ScriptletName is the name of the scriptlet resource for
	// [CosmeticScriptlet] rules.  It is empty for exceptions that disable all
	// scriptlets.
	ScriptletName string

	// ScriptletArgs are the arguments of the scriptlet call.
	ScriptletArgs []string

	permittedDomains  []string // a list of permitted domains
	restrictedDomains []string // a list of restricted domains

	// ID is the identifier of the rule within its rule storage.
	ID uint64

	FilterListID int              // Filter list identifier
	Type         CosmeticRuleType // Type of the rule

	// Permission is the permission mask of the filter list this rule belongs
	// to.
	Permission PermissionMask

	Whitelist   bool // Whitelist is true if this is an exception rule
	ExtendedCSS bool // ExtendedCSS is true if the rule uses procedural operators
}

// NewCosmeticRule parses the rule text and creates a cosmetic rule.
func NewCosmeticRule(ruleText string, filterListID int) (r *CosmeticRule, err error) {
	idx, marker := findCosmeticMarker(ruleText)
	if idx == -1 {
		return nil, errors.Error("not a cosmetic rule")
	}

	r = &CosmeticRule{
		RuleText:     ruleText,
		FilterListID: filterListID,
		Whitelist:    strings.Contains(marker, "@"),
		Content:      strings.TrimSpace(ruleText[idx+len(marker):]),
	}

	if domains := ruleText[:idx]; domains != "" {
		r.permittedDomains, r.restrictedDomains, err = loadDomains(domains, ",")
		if err != nil {
			return nil, err
		}
	}

	err = r.loadContent(marker)
	if err != nil {
		return nil, err
	}

	if r.Whitelist && len(r.permittedDomains) == 0 && len(r.restrictedDomains) == 0 {
		return nil, errors.Error("generic exception rules are not supported")
	}

	return r, nil
}

// loadContent sets the type of the rule depending on marker and validates its
// content.
func (f *CosmeticRule) loadContent(marker string) (err error) {
	switch marker {
	case "##", "#@#":
		if strings.HasPrefix(f.Content, scriptletPrefix) {
			return f.loadScriptlet()
		}

		f.ExtendedCSS = hasProceduralOperators(f.Content)
		if f.ExtendedCSS {
			f.Type = CosmeticProcedural
		}
	case "#?#", "#@?#":
		f.Type, f.ExtendedCSS = CosmeticProcedural, true
	case "#$#", "#@$#":
		f.Type = CosmeticCSS
	case "#$?#", "#@$?#":
		f.Type, f.ExtendedCSS = CosmeticCSS, true
	default:
		return fmt.Errorf("%w: %q rules", ErrUnsupportedRule, marker)
	}

	if f.Content == "" {
		return errors.Error("empty rule content")
	}

	if f.Type == CosmeticCSS {
		if _, _, ok := f.CSSStyle(); !ok {
			return errors.Error("css rule requires a style block")
		}
	}

	return nil
}

// loadScriptlet parses the "+js(name, arg1, arg2)" content.
func (f *CosmeticRule) loadScriptlet() (err error) {
	f.Type = CosmeticScriptlet

	if !strings.HasSuffix(f.Content, ")") {
		return errors.Error("unterminated scriptlet call")
	}

	call := f.Content[len(scriptletPrefix) : len(f.Content)-1]
	args := splitWithEscapeCharacter(call, ',', escapeCharacter, true)
	for i, a := range args {
		args[i] = strings.TrimSpace(a)
	}

	if len(args) > 0 {
		f.ScriptletName, f.ScriptletArgs = args[0], args[1:]
	}

	if f.ScriptletName == "" && !f.Whitelist {
		return errors.Error("empty scriptlet name")
	}

	return nil
}

// Text returns the original rule text
// Implements the `Rule` interface
func (f *CosmeticRule) Text() string {
	return f.RuleText
}

// GetFilterListID returns ID of the filter list this rule belongs to
func (f *CosmeticRule) GetFilterListID() int {
	return f.FilterListID
}

// String returns original rule text
func (f *CosmeticRule) String() string {
	return f.RuleText
}

// GetPermittedDomains returns a slice of permitted domains
func (f *CosmeticRule) GetPermittedDomains() []string {
	return f.permittedDomains
}

// GetRestrictedDomains returns a slice of restricted domains
func (f *CosmeticRule) GetRestrictedDomains() []string {
	return f.restrictedDomains
}

// IsGeneric returns true if rule can be considered generic (is not limited
// to a specific domain)
func (f *CosmeticRule) IsGeneric() bool {
	return len(f.permittedDomains) == 0
}

// Match returns true if this rule can be used on the specified hostname.
// domain is the registrable domain of hostname.
func (f *CosmeticRule) Match(hostname, domain string) bool {
	if len(f.permittedDomains) == 0 && len(f.restrictedDomains) == 0 {
		return true
	}

	if len(f.restrictedDomains) > 0 && matchDomains(hostname, domain, f.restrictedDomains) {
		return false
	}

	if len(f.permittedDomains) > 0 {
		return matchDomains(hostname, domain, f.permittedDomains)
	}

	return true
}

// CSSStyle splits the content of a [CosmeticCSS] rule like
// "div.ad { display: none }" into the selector and the style.
func (f *CosmeticRule) CSSStyle() (selector, style string, ok bool) {
	open := strings.LastIndexByte(f.Content, '{')
	if open <= 0 || !strings.HasSuffix(f.Content, "}") {
		return "", "", false
	}

	selector = strings.TrimSpace(f.Content[:open])
	style = strings.TrimSpace(f.Content[open+1 : len(f.Content)-1])

	return selector, style, selector != "" && style != ""
}

// isCosmetic checks if this is a cosmetic filtering rule
func isCosmetic(line string) bool {
	idx, _ := findCosmeticMarker(line)

	return idx != -1
}

// findCosmeticMarker looks for a cosmetic rule marker in the rule text and
// returns its index and the marker itself.  idx is -1 if there is none.
func findCosmeticMarker(ruleText string) (idx int, marker string) {
	if i := strings.IndexByte(ruleText, '#'); i != -1 {
		for _, m := range cosmeticRulesMarkers {
			if strings.HasPrefix(ruleText[i:], m) {
				return i, m
			}
		}
	}

	for _, m := range htmlRulesMarkers {
		if i := strings.Index(ruleText, m); i != -1 {
			return i, m
		}
	}

	return -1, ""
}

// hasProceduralOperators returns true if selector uses extended CSS.
func hasProceduralOperators(selector string) (ok bool) {
	for _, op := range proceduralOperators {
		if strings.Contains(selector, op) {
			return true
		}
	}

	return false
}
