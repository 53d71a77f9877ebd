package contentblocking

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/blockengine/rules"
)

// resourceTypes maps the request types onto the WebKit resource types.
var resourceTypes = []struct {
	name string
	t    rules.RequestType
}{
	{name: ResourceTypeDocument, t: rules.TypeDocument | rules.TypeSubdocument},
	{name: ResourceTypeFont, t: rules.TypeFont},
	{name: ResourceTypeImage, t: rules.TypeImage},
	{name: ResourceTypeMedia, t: rules.TypeMedia},
	{
		name: ResourceTypeRaw,
		t: rules.TypeXmlhttprequest | rules.TypeWebsocket | rules.TypePing |
			rules.TypeCSPReport | rules.TypeObject | rules.TypeOther,
	},
	{name: ResourceTypeScript, t: rules.TypeScript},
	{name: ResourceTypeStyleSheet, t: rules.TypeStylesheet},
}

// allRequestTypes has every request type set.
const allRequestTypes = rules.TypeDocument | rules.TypeSubdocument | rules.TypeScript |
	rules.TypeStylesheet | rules.TypeObject | rules.TypeImage | rules.TypeXmlhttprequest |
	rules.TypeMedia | rules.TypeFont | rules.TypeWebsocket | rules.TypePing |
	rules.TypeCSPReport | rules.TypeOther

// convertRule converts a single network rule.  It returns an error if nr has
// no equivalent.
func convertRule(nr *rules.NetworkRule) (r *Rule, err error) {
	switch {
	case nr.IsModifier(), nr.IsOptionEnabled(rules.OptionRedirect), nr.Redirect != "":
		return nil, fmt.Errorf("%w: response modifier", errUnsupported)
	case nr.Tag != "":
		return nil, fmt.Errorf("%w: $tag", errUnsupported)
	case nr.HasDenyAllow():
		return nil, fmt.Errorf("%w: $denyallow", errUnsupported)
	case nr.IsDocumentException():
		return convertDocumentException(nr)
	}

	r = &Rule{
		Action: Action{Type: ActionTypeBlock},
	}

	if nr.Whitelist {
		r.Action.Type = ActionTypeIgnorePreviousRules
	}

	r.Trigger.URLFilter, err = urlFilter(nr.Pattern())
	if err != nil {
		return nil, err
	}

	r.Trigger.URLFilterIsCaseSensitive = nr.IsOptionEnabled(rules.OptionMatchCase)

	switch {
	case nr.IsOptionEnabled(rules.OptionThirdParty):
		r.Trigger.LoadType = []string{LoadTypeThirdParty}
	case nr.IsOptionDisabled(rules.OptionThirdParty):
		r.Trigger.LoadType = []string{LoadTypeFirstParty}
	}

	r.Trigger.ResourceType, err = convertRequestTypes(nr)
	if err != nil {
		return nil, err
	}

	err = convertDomains(nr, &r.Trigger)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// convertDocumentException converts a $document exception for a single host,
// like "@@||example.org^$document", into a rule that cancels blocking on the
// pages of that host.  Other document-level exceptions only affect cosmetic
// filtering and have no equivalent.
func convertDocumentException(nr *rules.NetworkRule) (r *Rule, err error) {
	if !nr.IsOptionEnabled(rules.OptionElemhide | rules.OptionJsinject) {
		return nil, fmt.Errorf("%w: cosmetic exception", errUnsupported)
	}

	host, ok := strings.CutPrefix(nr.Pattern(), rules.MaskStartURL)
	if ok {
		host, ok = strings.CutSuffix(host, rules.MaskSeparator)
	}

	if !ok || host == "" || strings.ContainsAny(host, "*|^/") {
		return nil, fmt.Errorf("%w: $document exception for %q", errUnsupported, nr.Pattern())
	}

	return &Rule{
		Trigger: Trigger{
			URLFilter: urlFilterAny,
			IfDomain:  []string{"*" + strings.ToLower(host)},
		},
		Action: Action{Type: ActionTypeIgnorePreviousRules},
	}, nil
}

// convertRequestTypes returns the WebKit resource types for the request types
// of nr.  An empty result means all types.
func convertRequestTypes(nr *rules.NetworkRule) (names []string, err error) {
	t := nr.PermittedRequestTypes()
	if t == 0 {
		t = allRequestTypes
	}

	t &^= nr.RestrictedRequestTypes()
	if t == allRequestTypes {
		return nil, nil
	} else if t == 0 {
		return nil, fmt.Errorf("%w: no request types", errUnsupported)
	}

	for _, rt := range resourceTypes {
		if t&rt.t != 0 {
			names = append(names, rt.name)
		}
	}

	return names, nil
}

// convertDomains sets the domain restrictions of nr to tr.  WebKit can't
// restrict a rule with both allowed and disallowed domains, nor with entity
// domains like "example.*".
func convertDomains(nr *rules.NetworkRule, tr *Trigger) (err error) {
	permitted, restricted := nr.GetPermittedDomains(), nr.GetRestrictedDomains()
	if len(permitted) > 0 && len(restricted) > 0 {
		return fmt.Errorf("%w: mixed $domain", errUnsupported)
	}

	domains := slices.Concat(permitted, restricted)
	for _, d := range domains {
		if strings.HasSuffix(d, ".*") {
			return fmt.Errorf("%w: entity domain %q", errUnsupported, d)
		}
	}

	converted := make([]string, 0, len(domains))
	for _, d := range domains {
		converted = append(converted, "*"+d)
	}

	if len(permitted) > 0 {
		tr.IfDomain = converted
	} else if len(restricted) > 0 {
		tr.UnlessDomain = converted
	}

	return nil
}
