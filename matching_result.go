package blockengine

import (
	"github.com/AdguardTeam/blockengine/rules"
)

// CosmeticOption is the enumeration of the parts of cosmetic filtering enabled
// on a page.
type CosmeticOption uint8

// CosmeticOption enumeration.
const (
	// CosmeticOptionGenericCSS means generic element hiding is enabled.  It can
	// be disabled by a $generichide rule.
	CosmeticOptionGenericCSS CosmeticOption = 1 << iota

	// CosmeticOptionCSS means element hiding is enabled.  It can be disabled by
	// an $elemhide rule.
	CosmeticOptionCSS

	// CosmeticOptionJS means scriptlets are enabled.  It can be disabled by a
	// $jsinject rule.
	CosmeticOptionJS

	// CosmeticOptionAll means everything is enabled.
	CosmeticOptionAll = CosmeticOptionGenericCSS | CosmeticOptionCSS | CosmeticOptionJS

	// CosmeticOptionNone means everything is disabled.
	CosmeticOptionNone CosmeticOption = 0
)

// matchingResult contains the rules matching a request sorted by how they
// take part in the decision.  Each single-rule field holds the rule with the
// highest priority of its kind.
type matchingResult struct {
	// basicRule is the ordinary blocking rule.
	basicRule *rules.NetworkRule

	// importantRule is the blocking rule with $important.
	importantRule *rules.NetworkRule

	// exceptionRule is the exception rule that unblocks the request.
	exceptionRule *rules.NetworkRule

	// documentRules are the exceptions that change cosmetic filtering on the
	// page, see [matchingResult.cosmeticOption].
	documentRules []*rules.NetworkRule

	// redirectRules are the $redirect-rule rules.
	redirectRules []*rules.NetworkRule

	// redirectExceptions are the exceptions disabling redirects.
	redirectExceptions []*rules.NetworkRule

	// removeParamRules are the $removeparam rules.
	removeParamRules []*rules.NetworkRule

	// removeParamExceptions are the exceptions disabling $removeparam rules.
	removeParamExceptions []*rules.NetworkRule

	// cspRules are the $csp rules.
	cspRules []*rules.NetworkRule

	// cspExceptions are the exceptions disabling $csp rules.
	cspExceptions []*rules.NetworkRule
}

// newMatchingResult sorts rs into a matching result.  The $badfilter rules and
// the rules they negate are removed first.
func newMatchingResult(rs []*rules.NetworkRule) (res *matchingResult) {
	rs = rules.RemoveBadfilter(rs)
	res = &matchingResult{}

	for _, r := range rs {
		switch {
		case r.IsOptionEnabled(rules.OptionCsp):
			res.cspRules, res.cspExceptions = appendByWhitelist(r, res.cspRules, res.cspExceptions)
		case r.IsOptionEnabled(rules.OptionRemoveParam):
			res.removeParamRules, res.removeParamExceptions = appendByWhitelist(
				r,
				res.removeParamRules,
				res.removeParamExceptions,
			)
		case r.IsOptionEnabled(rules.OptionRedirectRule):
			res.redirectRules, res.redirectExceptions = appendByWhitelist(
				r,
				res.redirectRules,
				res.redirectExceptions,
			)
		case r.Whitelist && r.IsOptionEnabled(rules.OptionRedirect):
			res.redirectExceptions = append(res.redirectExceptions, r)
		case r.IsDocumentException():
			res.documentRules = append(res.documentRules, r)
			if isDocumentWhitelistRule(r) {
				res.exceptionRule = higherPriority(res.exceptionRule, r)
			}
		case r.Whitelist:
			res.exceptionRule = higherPriority(res.exceptionRule, r)
		case r.IsImportant():
			res.importantRule = higherPriority(res.importantRule, r)
		default:
			res.basicRule = higherPriority(res.basicRule, r)
		}
	}

	return res
}

// appendByWhitelist appends r to exceptions if it's an exception rule and to
// blocking otherwise.
func appendByWhitelist(
	r *rules.NetworkRule,
	blocking []*rules.NetworkRule,
	exceptions []*rules.NetworkRule,
) (newBlocking, newExceptions []*rules.NetworkRule) {
	if r.Whitelist {
		return blocking, append(exceptions, r)
	}

	return append(blocking, r), exceptions
}

// higherPriority returns the rule with the higher priority.  cur may be nil.
func higherPriority(cur, r *rules.NetworkRule) (res *rules.NetworkRule) {
	if cur == nil || r.IsHigherPriority(cur) {
		return r
	}

	return cur
}

// isDocumentWhitelistRule returns true if r is a $document exception, which
// unblocks the page as well as disables cosmetic filtering on it.
func isDocumentWhitelistRule(r *rules.NetworkRule) (ok bool) {
	return r.IsOptionEnabled(rules.OptionElemhide | rules.OptionJsinject)
}

// cosmeticOption returns the parts of cosmetic filtering left enabled by the
// document-level exceptions.
func (res *matchingResult) cosmeticOption() (opt CosmeticOption) {
	opt = CosmeticOptionAll
	for _, r := range res.documentRules {
		if r.IsOptionEnabled(rules.OptionElemhide) {
			opt &^= CosmeticOptionCSS | CosmeticOptionGenericCSS
		}

		if r.IsOptionEnabled(rules.OptionGenerichide) {
			opt &^= CosmeticOptionGenericCSS
		}

		if r.IsOptionEnabled(rules.OptionJsinject) {
			opt &^= CosmeticOptionJS
		}
	}

	return opt
}
