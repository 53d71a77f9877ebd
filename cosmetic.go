package blockengine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/blockengine/internal/ufnet"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// URLResources are the cosmetic resources for a page.
type URLResources struct {
	// StyleSelectors are the styles to apply, keyed by the selectors.
	StyleSelectors map[string][]string `json:"style_selectors"`

	// HideSelectors are the selectors of the elements to hide.  Generic
	// selectors starting with a class or an ID aren't included, see
	// [Engine.HiddenClassIDSelectors].
	HideSelectors []string `json:"hide_selectors"`

	// ProceduralActions are the rules the page script must evaluate itself.
	ProceduralActions []string `json:"procedural_actions"`

	// Exceptions are the selectors that must not be hidden on the page.
	Exceptions []string `json:"exceptions"`

	// InjectedScript is the code of the scriptlets to inject into the page.
	InjectedScript string `json:"injected_script"`

	// Generichide is true if generic element hiding is disabled on the page.
	Generichide bool `json:"generichide"`
}

// scriptletWrapper is the format of a single injected scriptlet.
const scriptletWrapper = "try {\n%s\n} catch ( e ) { }\n"

// URLCosmeticResources returns the cosmetic resources for the page with the
// URL.  It never fails.
func (e *Engine) URLCosmeticResources(url string) (res *URLResources) {
	hostname := strings.ToLower(ufnet.ExtractHostname(url))
	domain := rules.RegistrableDomain(e.resolver, hostname)
	opt := e.cosmeticOption(url, hostname)

	res = &URLResources{
		StyleSelectors: map[string][]string{},
		Generichide:    opt&CosmeticOptionGenericCSS == 0,
	}

	if hostname == "" {
		return res
	}

	st := e.state.Load()
	m := st.cosmetic.Match(hostname, domain, !res.Generichide)

	exceptions := container.NewMapSet(m.negated...)
	var scriptletExceptions []*rules.CosmeticRule
	for _, exc := range m.exceptions {
		if exc.Type == rules.CosmeticScriptlet {
			scriptletExceptions = append(scriptletExceptions, exc)
		} else {
			exceptions.Add(exc.Content)
		}
	}

	slices.SortFunc(m.rules, func(a, b *rules.CosmeticRule) (c int) {
		return strings.Compare(a.RuleText, b.RuleText)
	})

	var scripts []string
	for _, r := range m.rules {
		switch {
		case r.Type == rules.CosmeticScriptlet:
			if opt&CosmeticOptionJS != 0 && !scriptletDisabled(r, scriptletExceptions) {
				scripts = e.appendScriptlet(scripts, r)
			}
		case opt&CosmeticOptionCSS != 0 && !exceptions.Has(r.Content):
			res.addRule(r)
		}
	}

	res.InjectedScript = strings.Join(scripts, "")
	res.Exceptions = exceptions.Values()
	slices.Sort(res.Exceptions)
	res.HideSelectors = sortedUnique(res.HideSelectors)
	res.ProceduralActions = sortedUnique(res.ProceduralActions)

	return res
}

// addRule adds the selector or the style of the element hiding rule r to res.
func (res *URLResources) addRule(r *rules.CosmeticRule) {
	switch {
	case r.ExtendedCSS:
		res.ProceduralActions = append(res.ProceduralActions, r.Content)
	case r.Type == rules.CosmeticCSS:
		sel, style, _ := r.CSSStyle()
		if !slices.Contains(res.StyleSelectors[sel], style) {
			res.StyleSelectors[sel] = append(res.StyleSelectors[sel], style)
		}
	default:
		if r.IsGeneric() {
			// Generic class and ID selectors are only returned by
			// HiddenClassIDSelectors, so the rest of generic ones are here.
			if _, _, ok := classIDKey(r.Content); ok {
				return
			}
		}

		res.HideSelectors = append(res.HideSelectors, r.Content)
	}
}

// appendScriptlet appends the code of the scriptlet rule r to scripts.  A
// scriptlet without a resource or without the permission is skipped.
func (e *Engine) appendScriptlet(scripts []string, r *rules.CosmeticRule) (res []string) {
	code, err := e.resources.Load().Scriptlet(r.ScriptletName, r.ScriptletArgs, r.Permission)
	if err != nil {
		e.logger.Debug("skipping scriptlet", "rule", r.RuleText, slogutil.KeyError, err)

		return scripts
	}

	code = fmt.Sprintf(scriptletWrapper, code)
	if slices.Contains(scripts, code) {
		return scripts
	}

	return append(scripts, code)
}

// scriptletDisabled returns true if one of the exceptions disables the
// scriptlet rule r.  An exception without a name disables all scriptlets, and
// one without arguments disables all calls of the scriptlet.
func scriptletDisabled(r *rules.CosmeticRule, exceptions []*rules.CosmeticRule) (ok bool) {
	for _, exc := range exceptions {
		switch {
		case exc.ScriptletName == "":
			return true
		case !sameScriptlet(exc.ScriptletName, r.ScriptletName):
			continue
		case len(exc.ScriptletArgs) == 0, slices.Equal(exc.ScriptletArgs, r.ScriptletArgs):
			return true
		}
	}

	return false
}

// sameScriptlet returns true if a and b are the names of the same scriptlet
// with or without the ".js" suffix.
func sameScriptlet(a, b string) (ok bool) {
	return strings.TrimSuffix(a, ".js") == strings.TrimSuffix(b, ".js")
}

// cosmeticOption returns the parts of cosmetic filtering enabled on the page by
// the document-level exceptions.
func (e *Engine) cosmeticOption(url, hostname string) (opt CosmeticOption) {
	req := rules.NewPreparsedRequest(url, hostname, hostname, rules.TypeDocument, false, e.resolver)

	st := e.state.Load()
	mr := newMatchingResult(e.activeRules(st.network.MatchAll(req, e.cache), 0))

	return mr.cosmeticOption()
}

// HiddenClassIDSelectors returns the generic hiding selectors that apply to
// the elements with the classes and the IDs found on a page.  The selectors
// from exceptions are never returned.
func (e *Engine) HiddenClassIDSelectors(classes, ids, exceptions []string) (selectors []string) {
	st := e.state.Load()
	excSet := container.NewMapSet(exceptions...)

	for _, sel := range st.cosmetic.ClassIDSelectors(classes, ids) {
		if !excSet.Has(sel) {
			selectors = append(selectors, sel)
		}
	}

	return sortedUnique(selectors)
}

// sortedUnique sorts strs and removes the duplicates.
func sortedUnique(strs []string) (res []string) {
	slices.Sort(strs)

	return slices.Compact(strs)
}
