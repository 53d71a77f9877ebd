package blockengine

import (
	"slices"
	"strings"

	"github.com/AdguardTeam/blockengine/internal/ufnet"
	"github.com/AdguardTeam/blockengine/resources"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/container"
)

// CheckParams are the parameters of a single request check.
type CheckParams struct {
	// URL is the full URL of the request.
	URL string

	// Hostname is the hostname of the request.  If empty, it is taken from
	// URL.
	Hostname string

	// SourceHostname is the hostname of the page that initiated the request.
	SourceHostname string

	// RequestType is the request category as reported by the browser, see
	// [rules.ParseRequestType].
	RequestType string

	// Permission are the permission bits a rule's filter list must have for
	// the rule to be considered.  Zero means any rule.
	Permission rules.PermissionMask

	// ThirdParty is true if the request is third-party to the page.
	ThirdParty bool

	// PreviouslyMatchedRule is true if the request has already been blocked by
	// an earlier check.
	PreviouslyMatchedRule bool

	// ForceCheckExceptions makes the check look for exceptions even if
	// PreviouslyMatchedRule is true.
	ForceCheckExceptions bool
}

// BlockerResult is the decision for a request.
type BlockerResult struct {
	// Filter is the blocking rule that decided the result, if any.
	Filter *rules.NetworkRule

	// Exception is the exception rule that unblocked the request, if any.
	Exception *rules.NetworkRule

	// Redirect is the data URL the blocked request must be redirected to.
	Redirect string

	// RewrittenURL is the URL the request must be sent to instead.  It is only
	// set if the request isn't blocked.
	RewrittenURL string

	// Matched is true if the request must be blocked.
	Matched bool

	// Important is true if an $important rule blocked the request despite the
	// exceptions.
	Important bool

	// HasException is true if an exception unblocked the request.
	HasException bool
}

// newRequest creates a request for p.
func (e *Engine) newRequest(p *CheckParams) (r *rules.Request) {
	hostname := p.Hostname
	if hostname == "" {
		hostname = ufnet.ExtractHostname(p.URL)
	}

	return rules.NewPreparsedRequest(
		p.URL,
		hostname,
		p.SourceHostname,
		rules.ParseRequestType(p.RequestType),
		p.ThirdParty,
		e.resolver,
	)
}

// Check returns the decision for the request described by p.  It never fails,
// and the result only depends on the loaded rules, the enabled tags, and p.
func (e *Engine) Check(p *CheckParams) (res *BlockerResult) {
	if p.PreviouslyMatchedRule && !p.ForceCheckExceptions {
		return &BlockerResult{Matched: true}
	}

	st := e.state.Load()
	req := e.newRequest(p)
	mr := newMatchingResult(e.activeRules(st.network.MatchAll(req, e.cache), p.Permission))

	return e.decide(mr, p)
}

// activeRules returns the rules from rs that belong to lists with perm and
// whose tags are enabled.  rs is sorted by the rule text, so that the result
// doesn't depend on the order of the lists.
func (e *Engine) activeRules(rs []*rules.NetworkRule, perm rules.PermissionMask) (active []*rules.NetworkRule) {
	tags := e.tags.Load()

	active = rs[:0]
	for _, r := range rs {
		if r.Permission.Has(perm) && (r.Tag == "" || tags.Has(r.Tag)) {
			active = append(active, r)
		}
	}

	slices.SortStableFunc(active, func(a, b *rules.NetworkRule) (res int) {
		return strings.Compare(a.RuleText, b.RuleText)
	})

	return active
}

// decide makes the decision from the matching result.
func (e *Engine) decide(mr *matchingResult, p *CheckParams) (res *BlockerResult) {
	res = &BlockerResult{}

	block := mr.basicRule
	switch {
	case mr.importantRule != nil:
		res.Matched, res.Important, res.Filter = true, true, mr.importantRule
	case block == nil && !p.PreviouslyMatchedRule && !p.ForceCheckExceptions:
		// Exceptions only matter when there is something to unblock.
	case mr.exceptionRule != nil:
		res.HasException, res.Exception = true, mr.exceptionRule
	case block != nil || p.PreviouslyMatchedRule:
		res.Matched, res.Filter = true, block
	}

	if res.Matched {
		res.Redirect = e.redirect(mr, res.Filter)

		return res
	}

	// The request URL is cut for matching, so rewrite the original one.
	res.RewrittenURL = rewriteURL(p.URL, mr.removeParamRules, mr.removeParamExceptions)

	return res
}

// redirect returns the data URL of the redirect resource for the blocked
// request, if any.  filter is the blocking rule and may be nil.
func (e *Engine) redirect(mr *matchingResult, filter *rules.NetworkRule) (dataURL string) {
	var name string
	if filter != nil && filter.IsOptionEnabled(rules.OptionRedirect) {
		name = filter.Redirect
	} else {
		var best *rules.NetworkRule
		for _, r := range mr.redirectRules {
			best = higherPriority(best, r)
		}

		if best == nil {
			return ""
		}

		name = best.Redirect
	}

	for _, exc := range mr.redirectExceptions {
		if exc.Redirect == "" || exc.Redirect == name {
			return ""
		}
	}

	dataURL, ok := e.resources.Load().RedirectURL(name)
	if !ok {
		e.logger.Debug("redirect resource not found", "name", name)
	}

	return dataURL
}

// rewriteURL removes the query parameters of the $removeparam rules from
// urlStr unless exceptions disable them.  It returns an empty string if
// nothing has been removed.
func rewriteURL(urlStr string, rs, exceptions []*rules.NetworkRule) (rewritten string) {
	if len(rs) == 0 {
		return ""
	}

	names := container.NewMapSet[string]()
	for _, r := range rs {
		names.Add(r.RemoveParam)
	}

	for _, exc := range exceptions {
		if exc.RemoveParam == "" {
			return ""
		}

		names.Delete(exc.RemoveParam)
	}

	if names.Len() == 0 {
		return ""
	}

	rewritten, ok := removeQueryParams(urlStr, names)
	if !ok {
		return ""
	}

	return rewritten
}

// removeQueryParams removes the query parameters with the names from names
// from urlStr keeping the order of the rest.  ok is false if there is nothing
// to remove.
func removeQueryParams(urlStr string, names *container.MapSet[string]) (res string, ok bool) {
	base, query, hasQuery := strings.Cut(urlStr, "?")
	if !hasQuery {
		return "", false
	}

	query, fragment, hasFragment := strings.Cut(query, "#")

	params := strings.Split(query, "&")
	kept := params[:0]
	for _, param := range params {
		name, _, _ := strings.Cut(param, "=")
		if names.Has(name) {
			ok = true

			continue
		}

		kept = append(kept, param)
	}

	if !ok {
		return "", false
	}

	res = base
	if len(kept) > 0 {
		res += "?" + strings.Join(kept, "&")
	}

	if hasFragment {
		res += "#" + fragment
	}

	return res, true
}

// CSPDirectives returns the Content-Security-Policy directives to add to the
// response for the request described by p, joined with commas.  Only document
// and subdocument requests get the directives.
func (e *Engine) CSPDirectives(p *CheckParams) (csp string) {
	req := e.newRequest(p)
	if req.RequestType&(rules.TypeDocument|rules.TypeSubdocument) == 0 {
		return ""
	}

	st := e.state.Load()
	mr := newMatchingResult(e.activeRules(st.network.MatchAll(req, e.cache), p.Permission))

	disabled := container.NewMapSet[string]()
	for _, exc := range mr.cspExceptions {
		if exc.CSP == "" {
			return ""
		}

		disabled.Add(exc.CSP)
	}

	var directives []string
	for _, r := range mr.cspRules {
		if !disabled.Has(r.CSP) && !slices.Contains(directives, r.CSP) {
			directives = append(directives, r.CSP)
		}
	}

	slices.Sort(directives)

	return strings.Join(directives, ",")
}

// resourcesOrEmpty returns sh or a new empty shared storage if sh is nil.
func resourcesOrEmpty(sh *resources.Shared) (res *resources.Shared) {
	if sh == nil {
		return resources.NewShared(nil)
	}

	return sh
}
