package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	maskWhiteList    = "@@"
	optionsDelimiter = '$'
	escapeCharacter  = '\\'
)

// ErrTooWideRule is returned if the rule matches all urls but has no domain
// or denyallow restrictions.
const ErrTooWideRule errors.Error = "the rule is too wide, add domain or denyallow " +
	"restrictions or make it more specific"

var (
	reEscapedOptionsDelimiter = regexp.MustCompile(regexp.QuoteMeta("\\$"))
	reRegexpBrackets1         = regexp.MustCompile(`([^\\])\(.*[^\\]\)`)
	reRegexpBrackets2         = regexp.MustCompile(`([^\\])\{.*[^\\]\}`)
	reRegexpBrackets3         = regexp.MustCompile(`([^\\])\[.*[^\\]\]`)
	reRegexpEscapedCharacters = regexp.MustCompile(`([^\\])\[a-zA-Z]`)
	reRegexpSpecialCharacters = regexp.MustCompile(`[\\^$*+?.()|[\]{}]`)
)

// NetworkRuleOption is the enumeration of various rule options
// In order to save memory, we store some options as a flag
type NetworkRuleOption uint64

// NetworkRuleOption enumeration
const (
	OptionThirdParty NetworkRuleOption = 1 << iota // $third-party modifier
	OptionMatchCase                                // $match-case modifier
	OptionImportant                                // $important modifier
	OptionBadfilter                                // $badfilter modifier

	// Whitelist rules modifiers
	// Each of them can disable part of the cosmetic functionality

	OptionElemhide    // $elemhide modifier
	OptionGenerichide // $generichide modifier
	OptionJsinject    // $jsinject modifier

	// Response-modifying rules

	OptionRedirect     // $redirect
	OptionRedirectRule // $redirect-rule
	OptionRemoveParam  // $removeparam
	OptionCsp          // $csp

	// Whitelist-only options
	OptionWhitelistOnly = OptionElemhide | OptionGenerichide | OptionJsinject

	// OptionModifiers are the options that make a rule modify a request or a
	// response instead of blocking it.
	OptionModifiers = OptionRedirectRule | OptionRemoveParam | OptionCsp
)

// Count returns the count of enabled options
func (o NetworkRuleOption) Count() int {
	count := 0
	for flags := uint64(o); flags != 0; flags &= flags - 1 {
		count++
	}

	return count
}

// NetworkRule is a basic filtering rule
// https://kb.adguard.com/en/general/how-to-create-your-own-ad-filters#basic-rules
type NetworkRule struct {
	RuleText string // RuleText is the original rule text
	Shortcut string // the longest substring of the rule pattern with no special characters

	// Redirect is the name of the resource from the $redirect or
	// $redirect-rule modifier.  It is empty for exception rules that cancel
	// redirects.
	Redirect string

	// RemoveParam is the name of the query parameter removed by the
	// $removeparam modifier.
	RemoveParam string

	// CSP is the value of the $csp modifier.
	CSP string

	// Tag is the value of the $tag modifier.  Rules with a tag are only active
	// while the tag is enabled.
	Tag string

	permittedDomains  []string // a list of permitted domains from the $domain modifier
	restrictedDomains []string // a list of restricted domains from the $domain modifier
	denyAllowDomains  []string // a list of excluded domains from the $denyallow modifier

	pattern    string // pattern is the basic rule pattern
	regexpText string // regexpText is the regex for pattern, empty if pattern matches anything

	// ID is the identifier of the rule within its rule storage.  It is
	// assigned when the rule is added to a storage.
	ID uint64

	FilterListID int // Filter list identifier

	enabledOptions  NetworkRuleOption // Flag with all enabled rule options
	disabledOptions NetworkRuleOption // Flag with all disabled rule options

	permittedRequestTypes  RequestType // Flag with all permitted request types. 0 means ALL.
	restrictedRequestTypes RequestType // Flag with all restricted request types. 0 means NONE.

	// Permission is the permission mask of the filter list this rule belongs
	// to.
	Permission PermissionMask

	Whitelist bool // true if this is an exception rule
}

// NewNetworkRule parses the rule text and returns a filter rule
func NewNetworkRule(ruleText string, filterListID int) (r *NetworkRule, err error) {
	pattern, options, whitelist, err := parseRuleText(ruleText)
	if err != nil {
		return nil, err
	}

	r = &NetworkRule{
		RuleText:     ruleText,
		Whitelist:    whitelist,
		FilterListID: filterListID,
		pattern:      pattern,
	}

	err = r.loadOptions(options)
	if err != nil {
		return nil, err
	}

	// example.org/* -> example.org^
	if strings.HasSuffix(r.pattern, "/*") {
		r.pattern = r.pattern[:len(r.pattern)-len("/*")] + "^"
	}

	if r.isTooWide() {
		return nil, ErrTooWideRule
	}

	r.loadShortcut()
	r.loadRegexpText()

	return r, nil
}

// isTooWide returns true if the rule matches too much and has no domain
// restrictions.  Document-level exceptions and response modifiers are
// allowed to be wide.
func (f *NetworkRule) isTooWide() (ok bool) {
	p := f.pattern
	if p != MaskStartURL && p != MaskPipe && p != MaskAnyCharacter && len(p) >= 3 {
		return false
	}

	if f.Whitelist && f.enabledOptions&OptionWhitelistOnly != 0 {
		return false
	}

	return len(f.permittedDomains) == 0 && len(f.denyAllowDomains) == 0
}

// Text returns the original rule text
// Implements the `Rule` interface
func (f *NetworkRule) Text() string {
	return f.RuleText
}

// GetFilterListID returns ID of the filter list this rule belongs to
func (f *NetworkRule) GetFilterListID() int {
	return f.FilterListID
}

// String returns original rule text
func (f *NetworkRule) String() string {
	return f.RuleText
}

// Match checks if this filtering rule matches the specified request.  c is
// used to get the compiled pattern; if c is nil, the pattern is compiled on
// every call.
func (f *NetworkRule) Match(r *Request, c RegexpCache) (ok bool) {
	switch {
	case
		!f.matchShortcut(r),
		f.IsOptionEnabled(OptionThirdParty) && !r.ThirdParty,
		f.IsOptionDisabled(OptionThirdParty) && r.ThirdParty,
		!f.matchRequestType(r.RequestType),
		!f.matchRequestDomain(r.Hostname, r.Domain),
		!f.matchSourceDomain(r.SourceHostname, r.SourceDomain),
		!f.matchPattern(r, c):
		return false
	}

	return true
}

// IsOptionEnabled returns true if the specified option is enabled
func (f *NetworkRule) IsOptionEnabled(option NetworkRuleOption) bool {
	return (f.enabledOptions & option) == option
}

// IsOptionDisabled returns true if the specified option is disabled
func (f *NetworkRule) IsOptionDisabled(option NetworkRuleOption) bool {
	return (f.disabledOptions & option) == option
}

// IsImportant returns true if this is a blocking rule with $important.
func (f *NetworkRule) IsImportant() (ok bool) {
	return f.IsOptionEnabled(OptionImportant)
}

// IsModifier returns true if the rule modifies requests or responses instead of
// blocking them, see [OptionModifiers].
func (f *NetworkRule) IsModifier() (ok bool) {
	return f.enabledOptions&OptionModifiers != 0
}

// IsDocumentException returns true if this is an exception rule that only
// changes how cosmetic filtering works on a page.
func (f *NetworkRule) IsDocumentException() (ok bool) {
	return f.Whitelist && f.enabledOptions&OptionWhitelistOnly != 0
}

// GetPermittedDomains - returns an array of domains this rule is allowed on
func (f *NetworkRule) GetPermittedDomains() []string {
	return f.permittedDomains
}

// GetRestrictedDomains returns an array of domains this rule is disabled on.
func (f *NetworkRule) GetRestrictedDomains() []string {
	return f.restrictedDomains
}

// HasDenyAllow returns true if the rule has the $denyallow modifier.
func (f *NetworkRule) HasDenyAllow() (ok bool) {
	return len(f.denyAllowDomains) > 0
}

// PermittedRequestTypes returns the request types from the rule's options, zero
// means all of them.
func (f *NetworkRule) PermittedRequestTypes() (t RequestType) {
	return f.permittedRequestTypes
}

// RestrictedRequestTypes returns the request types excluded by the rule's
// options.
func (f *NetworkRule) RestrictedRequestTypes() (t RequestType) {
	return f.restrictedRequestTypes
}

// Pattern returns the basic rule pattern.
func (f *NetworkRule) Pattern() (p string) {
	return f.pattern
}

// RegexpText returns the regular expression the rule's pattern is compiled
// into.  It is empty if the pattern matches any URL.
func (f *NetworkRule) RegexpText() (expr string) {
	return f.regexpText
}

// IsRegexRule returns true if rule's pattern is a regular expression
func (f *NetworkRule) IsRegexRule() bool {
	return isRegexPattern(f.pattern)
}

// IsGeneric returns true if the rule is considered "generic"
// "generic" means that the rule is not restricted to a limited set of domains
// Please note that it might be forbidden on some domains, though.
func (f *NetworkRule) IsGeneric() bool {
	return len(f.permittedDomains) == 0
}

// IsHigherPriority checks if the rule has higher priority that the specified
// rule: $important > whitelist > $redirect > specific > basic rules.  Rules
// with the same priority are ordered by their text so that the result never
// depends on the order the rules were loaded in.
func (f *NetworkRule) IsHigherPriority(r *NetworkRule) bool {
	if important, rImportant := f.IsImportant(), r.IsImportant(); important != rImportant {
		return important
	}

	if f.Whitelist != r.Whitelist {
		return f.Whitelist
	}

	if redirect, rRedirect := f.IsOptionEnabled(OptionRedirect), r.IsOptionEnabled(OptionRedirect); redirect != rRedirect {
		// $redirect rules have "slightly" higher priority than regular basic rules
		return redirect
	}

	if generic, rGeneric := f.IsGeneric(), r.IsGeneric(); generic != rGeneric {
		// specific rules have priority over generic rules
		return !generic
	}

	// More specific rules (i.e. with more modifiers) have higher priority
	if count, rCount := f.optionsCount(), r.optionsCount(); count != rCount {
		return count > rCount
	}

	return f.RuleText < r.RuleText
}

// optionsCount returns the number of modifiers set for the rule.
func (f *NetworkRule) optionsCount() (n int) {
	n = f.enabledOptions.Count() + f.disabledOptions.Count() +
		f.permittedRequestTypes.Count() + f.restrictedRequestTypes.Count()
	if len(f.permittedDomains) != 0 || len(f.restrictedDomains) != 0 {
		n++
	}

	if len(f.denyAllowDomains) != 0 {
		n++
	}

	return n
}

// NegatesBadfilter only makes sense when the "f" rule has a `badfilter`
// modifier.  It returns true if the "f" rule negates the specified "r" rule.
func (f *NetworkRule) NegatesBadfilter(r *NetworkRule) bool {
	switch {
	case
		!f.IsOptionEnabled(OptionBadfilter),
		f.Whitelist != r.Whitelist,
		f.pattern != r.pattern,
		f.permittedRequestTypes != r.permittedRequestTypes,
		f.restrictedRequestTypes != r.restrictedRequestTypes,
		(f.enabledOptions ^ OptionBadfilter) != r.enabledOptions,
		f.disabledOptions != r.disabledOptions,
		f.Redirect != r.Redirect,
		f.RemoveParam != r.RemoveParam,
		f.CSP != r.CSP,
		f.Tag != r.Tag,
		!stringArraysEquals(f.permittedDomains, r.permittedDomains),
		!stringArraysEquals(f.restrictedDomains, r.restrictedDomains),
		!stringArraysEquals(f.denyAllowDomains, r.denyAllowDomains):
		return false
	}

	return true
}

// loadRegexpText prepares the text of the regular expression for the rule's
// pattern.  The expression itself is compiled lazily.
func (f *NetworkRule) loadRegexpText() {
	expr := patternToRegexp(f.pattern)
	if expr == RegexAnyCharacter {
		return
	}

	if !f.IsOptionEnabled(OptionMatchCase) {
		expr = "(?i)" + expr
	}

	f.regexpText = expr
}

// matchPattern uses the regex pattern to match the request URL
func (f *NetworkRule) matchPattern(r *Request, c RegexpCache) (ok bool) {
	if f.regexpText == "" {
		return true
	}

	var re *regexp.Regexp
	if c != nil {
		re, ok = c.GetOrCompile(f.ID, f.regexpText)
	} else {
		var err error
		re, err = regexp.Compile(f.regexpText)
		ok = err == nil
	}

	return ok && re.MatchString(r.URL)
}

// matchShortcut simply checks if shortcut is a substring of the URL
func (f *NetworkRule) matchShortcut(r *Request) bool {
	return strings.Contains(r.URLLowerCase, f.Shortcut)
}

// matchRequestDomain checks if the filtering rule is allowed to match this
// request domain, e.g. it checks it against the $denyallow modifier.  The rule
// works if the request hostname **does not** belong to $denyallow domains.
// For instance, "*$script,domain=example.org,denyallow=essential1.com" blocks
// all scripts on example.org except for the ones from essential1.com.
func (f *NetworkRule) matchRequestDomain(hostname, domain string) (ok bool) {
	if len(f.denyAllowDomains) == 0 {
		return true
	}

	return !matchDomains(hostname, domain, f.denyAllowDomains)
}

// matchSourceDomain checks if the specified filtering rule is allowed on this
// domain e.g. it checks the domain against what's specified in the $domain
// modifier.
func (f *NetworkRule) matchSourceDomain(hostname, domain string) bool {
	if len(f.permittedDomains) == 0 && len(f.restrictedDomains) == 0 {
		return true
	}

	if len(f.restrictedDomains) > 0 && matchDomains(hostname, domain, f.restrictedDomains) {
		// Domain or host is restricted
		// i.e. $domain=~example.org
		return false
	}

	if len(f.permittedDomains) > 0 && !matchDomains(hostname, domain, f.permittedDomains) {
		// Domain is not among permitted
		// i.e. $domain=example.org and we're checking example.com
		return false
	}

	return true
}

// matchRequestType checks if the specified request type matches the rule properties
func (f *NetworkRule) matchRequestType(requestType RequestType) bool {
	if f.permittedRequestTypes != 0 && (f.permittedRequestTypes&requestType) != requestType {
		return false
	}

	if f.restrictedRequestTypes != 0 && (f.restrictedRequestTypes&requestType) == requestType {
		return false
	}

	return true
}

// setRequestType permits or forbids the specified request type
func (f *NetworkRule) setRequestType(requestType RequestType, permitted bool) {
	if permitted {
		f.permittedRequestTypes |= requestType
	} else {
		f.restrictedRequestTypes |= requestType
	}
}

// setOptionEnabled enables or disables the specified option
// it can return error if this option cannot be used with this type of rules
func (f *NetworkRule) setOptionEnabled(option NetworkRuleOption, enabled bool) error {
	if !f.Whitelist && (option&OptionWhitelistOnly) == option {
		return fmt.Errorf("modifier cannot be used in a blacklist rule: %v", option)
	}

	if f.Whitelist && option == OptionImportant {
		return ErrImportantException
	}

	if enabled {
		f.enabledOptions |= option
	} else {
		f.disabledOptions |= option
	}

	return nil
}

// loadOptions loads all the filtering rule options
// read the details on each here: https://kb.adguard.com/en/general/how-to-create-your-own-ad-filters#basic-rules
func (f *NetworkRule) loadOptions(options string) error {
	if options == "" {
		return nil
	}

	for _, option := range splitWithEscapeCharacter(options, ',', '\\', false) {
		name, value, _ := strings.Cut(option, "=")

		err := f.loadOption(name, value)
		if err != nil {
			return err
		}
	}

	// Rules of these types can be applied to documents only.
	if f.enabledOptions&OptionWhitelistOnly != 0 {
		f.permittedRequestTypes = TypeDocument
	}

	return f.validateModifiers()
}

// validateModifiers checks the combinations of the response-modifying options.
func (f *NetworkRule) validateModifiers() (err error) {
	if f.Whitelist {
		return nil
	}

	switch {
	case f.IsOptionEnabled(OptionRedirect) && f.Redirect == "",
		f.IsOptionEnabled(OptionRedirectRule) && f.Redirect == "":
		return errors.Error("$redirect requires a resource name")
	case f.IsOptionEnabled(OptionRemoveParam) && f.RemoveParam == "":
		return errors.Error("$removeparam requires a parameter name")
	case f.IsOptionEnabled(OptionCsp) && f.CSP == "":
		return errors.Error("$csp requires a directive")
	default:
		return nil
	}
}

// requestTypeOptions maps request type modifiers to the request types.
var requestTypeOptions = map[string]RequestType{
	"script":         TypeScript,
	"stylesheet":     TypeStylesheet,
	"css":            TypeStylesheet,
	"subdocument":    TypeSubdocument,
	"frame":          TypeSubdocument,
	"object":         TypeObject,
	"image":          TypeImage,
	"xmlhttprequest": TypeXmlhttprequest,
	"xhr":            TypeXmlhttprequest,
	"media":          TypeMedia,
	"font":           TypeFont,
	"websocket":      TypeWebsocket,
	"ping":           TypePing,
	"csp_report":     TypeCSPReport,
	"other":          TypeOther,
}

// loadOption loads specified option with its value (optional)
//
//nolint:gocyclo
func (f *NetworkRule) loadOption(name, value string) error {
	if t, ok := requestTypeOptions[strings.TrimPrefix(name, "~")]; ok {
		f.setRequestType(t, !strings.HasPrefix(name, "~"))

		return nil
	}

	switch name {
	// General options
	case "third-party", "~first-party", "3p":
		return f.setOptionEnabled(OptionThirdParty, true)
	case "~third-party", "first-party", "1p":
		return f.setOptionEnabled(OptionThirdParty, false)
	case "match-case":
		return f.setOptionEnabled(OptionMatchCase, true)
	case "~match-case":
		return f.setOptionEnabled(OptionMatchCase, false)
	case "important":
		return f.setOptionEnabled(OptionImportant, true)
	case "badfilter":
		return f.setOptionEnabled(OptionBadfilter, true)

	// $domain -- limits the rule for selected source domains
	case "domain", "from":
		permitted, restricted, err := loadDomains(value, "|")
		f.permittedDomains = permitted
		f.restrictedDomains = restricted

		return err

	// $denyallow -- disables the rule for the selected request domains
	case "denyallow":
		permitted, restricted, err := loadDomains(value, "|")
		if err != nil {
			return err
		}

		if len(restricted) > 0 || len(permitted) == 0 {
			return fmt.Errorf("invalid $denyallow value: %s", value)
		}

		f.denyAllowDomains = permitted

		return nil

	// Document-level whitelist rules
	case "elemhide", "ehide":
		return f.setOptionEnabled(OptionElemhide, true)
	case "generichide", "ghide":
		return f.setOptionEnabled(OptionGenerichide, true)
	case "jsinject":
		return f.setOptionEnabled(OptionJsinject, true)

	// $document
	case "document", "doc":
		f.setRequestType(TypeDocument, true)
		if !f.Whitelist {
			return nil
		}

		err := f.setOptionEnabled(OptionElemhide, true)
		if err != nil {
			return err
		}

		return f.setOptionEnabled(OptionJsinject, true)

	case "redirect":
		f.Redirect = value

		return f.setOptionEnabled(OptionRedirect, true)
	case "redirect-rule":
		f.Redirect = value

		return f.setOptionEnabled(OptionRedirectRule, true)
	case "removeparam":
		if isRegexPattern(value) {
			return fmt.Errorf("%w: regular expression in $removeparam", ErrUnsupportedRule)
		}

		f.RemoveParam = value

		return f.setOptionEnabled(OptionRemoveParam, true)
	case "csp":
		f.CSP = value

		return f.setOptionEnabled(OptionCsp, true)
	case "tag":
		if value == "" {
			return errors.Error("$tag requires a value")
		}

		f.Tag = value

		return nil
	}

	return fmt.Errorf("unknown filter modifier: %s=%s", name, value)
}

// loadShortcut extracts a shortcut from the pattern.
// shortcut is the longest substring of the pattern that does not contain
// any special characters
func (f *NetworkRule) loadShortcut() {
	var shortcut string
	if f.IsRegexRule() {
		shortcut = findRegexpShortcut(f.pattern)
	} else {
		shortcut = findShortcut(f.pattern)
	}

	// shortcut needs to be at least longer than 1 character
	if len(shortcut) > 1 {
		f.Shortcut = strings.ToLower(shortcut)
	}
}

// findShortcut searches for the longest substring of the pattern that does not
// contain any of the special characters which are:
//
//	*
//	^
//	|
func findShortcut(pattern string) (shortcut string) {
	for pattern != "" {
		i := strings.IndexAny(pattern, "*^|")
		if i == -1 {
			if len(pattern) > len(shortcut) {
				return pattern
			}

			break
		}

		if i > len(shortcut) {
			shortcut = pattern[:i]
		}
		pattern = pattern[i+1:]
	}

	return shortcut
}

// findRegexpShortcut searches for a shortcut inside of a regexp pattern.
// Shortcut in this case is a longest string with no REGEX special characters
// Also, we discard complicated regexps right away.
func findRegexpShortcut(pattern string) string {
	// strip backslashes
	pattern = pattern[1 : len(pattern)-1]

	if strings.Contains(pattern, "?") {
		// Do not mess with complex expressions which use lookahead
		// And with those using ? special character: https://github.com/AdguardTeam/AdguardBrowserExtension/issues/978
		return ""
	}

	// placeholder for a special character
	specialCharacter := "..."

	// (Dirty) prepend specialCharacter for the following replace calls to work properly
	pattern = specialCharacter + pattern

	// Strip all types of brackets
	pattern = reRegexpBrackets1.ReplaceAllString(pattern, "$1"+specialCharacter)
	pattern = reRegexpBrackets2.ReplaceAllString(pattern, "$1"+specialCharacter)
	pattern = reRegexpBrackets3.ReplaceAllString(pattern, "$1"+specialCharacter)

	// Strip some escaped characters
	pattern = reRegexpEscapedCharacters.ReplaceAllString(pattern, "$1"+specialCharacter)

	// Split by special characters
	parts := reRegexpSpecialCharacters.Split(pattern, -1)
	longest := ""
	for _, part := range parts {
		if len(part) > len(longest) {
			longest = part
		}
	}

	return longest
}

// parseRuleText splits the rule text in multiple parts:
// pattern -- a basic rule pattern (which can be easily converted into a regex)
// options -- a string with all rule options
// whitelist -- indicates if rule is "whitelist" (e.g. it should unblock requests, not block them)
func parseRuleText(ruleText string) (pattern, options string, whitelist bool, err error) {
	startIndex := 0
	if strings.HasPrefix(ruleText, maskWhiteList) {
		whitelist = true
		startIndex = len(maskWhiteList)
	}

	if len(ruleText) <= startIndex {
		return "", "", false, fmt.Errorf("the rule is too short: %s", ruleText)
	}

	// Setting pattern to rule text (for the case of empty options)
	pattern = ruleText[startIndex:]

	// Avoid parsing options inside of a regex rule
	if isRegexPattern(pattern) {
		return pattern, "", whitelist, nil
	}

	foundEscaped := false
	for i := len(ruleText) - 2; i >= startIndex; i-- {
		c := ruleText[i]
		if c != optionsDelimiter {
			continue
		}

		if i > startIndex && ruleText[i-1] == escapeCharacter {
			foundEscaped = true

			continue
		}

		pattern = ruleText[startIndex:i]
		options = ruleText[i+1:]

		if foundEscaped {
			// Find and replace escaped options delimiter
			options = reEscapedOptionsDelimiter.ReplaceAllString(options, string(optionsDelimiter))
		}

		// Options delimiter was found, exiting loop
		break
	}

	return pattern, options, whitelist, nil
}
