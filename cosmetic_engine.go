package blockengine

import (
	"strings"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/internal/ufnet"
	"github.com/AdguardTeam/blockengine/rules"
)

// CosmeticEngine combines all the cosmetic rules and allows to quickly find
// the rules matching a hostname.
type CosmeticEngine struct {
	// ruleStorage is the storage the rules are retrieved from by their IDs.
	ruleStorage *filterlist.RuleStorage

	// byHostname are the domain-specific rules, including the exceptions,
	// keyed by their permitted domains.
	byHostname map[string][]uint64

	// negatedByHostname are the generic class and ID rules keyed by their
	// restricted domains.  They become exceptions on those domains.
	negatedByHostname map[string][]uint64

	// genericByClass are the generic element hiding rules starting with a
	// class, keyed by that class.
	genericByClass map[string][]uint64

	// genericByID are the generic element hiding rules starting with an ID,
	// keyed by that ID.
	genericByID map[string][]uint64

	// generic are the other generic rules.
	generic []uint64

	// genericExceptions are the exceptions that only have restricted domains.
	genericExceptions []uint64

	// RulesCount is the count of rules added to the engine.
	RulesCount int
}

// NewCosmeticEngine builds a new cosmetic engine from the cosmetic rules of s.
func NewCosmeticEngine(s *filterlist.RuleStorage) (e *CosmeticEngine) {
	e = &CosmeticEngine{
		ruleStorage:       s,
		byHostname:        map[string][]uint64{},
		negatedByHostname: map[string][]uint64{},
		genericByClass:    map[string][]uint64{},
		genericByID:       map[string][]uint64{},
	}

	scanner := s.NewRuleStorageScanner()
	for scanner.Scan() {
		f, _ := scanner.Rule()
		if rule, ok := f.(*rules.CosmeticRule); ok {
			e.addRule(rule)
		}
	}

	return e
}

// addRule adds the rule to the lookup tables.
func (e *CosmeticEngine) addRule(f *rules.CosmeticRule) {
	e.RulesCount++

	if permitted := f.GetPermittedDomains(); len(permitted) > 0 {
		for _, d := range permitted {
			e.byHostname[d] = append(e.byHostname[d], f.ID)
		}

		return
	}

	if f.Whitelist {
		e.genericExceptions = append(e.genericExceptions, f.ID)

		return
	}

	if f.Type != rules.CosmeticElementHiding {
		e.generic = append(e.generic, f.ID)

		return
	}

	key, isClass, ok := classIDKey(f.Content)
	switch {
	case !ok:
		e.generic = append(e.generic, f.ID)
	case isClass:
		e.genericByClass[key] = append(e.genericByClass[key], f.ID)
	default:
		e.genericByID[key] = append(e.genericByID[key], f.ID)
	}

	if ok {
		for _, d := range f.GetRestrictedDomains() {
			e.negatedByHostname[d] = append(e.negatedByHostname[d], f.ID)
		}
	}
}

// classIDKey returns the class or the ID the selector starts with.  ok is
// false if the selector doesn't start with one or is a selector list.
func classIDKey(selector string) (key string, isClass, ok bool) {
	if len(selector) < 2 || strings.ContainsRune(selector, ',') {
		return "", false, false
	}

	switch selector[0] {
	case '.':
		isClass = true
	case '#':
		isClass = false
	default:
		return "", false, false
	}

	key = selector[1:]
	if i := strings.IndexAny(key, " .#[:>+~()"); i >= 0 {
		key = key[:i]
	}

	return key, isClass, key != ""
}

// cosmeticMatch are the cosmetic rules matching a hostname.
type cosmeticMatch struct {
	// rules are the matching rules that hide, style, or inject something.
	rules []*rules.CosmeticRule

	// exceptions are the matching exceptions.
	exceptions []*rules.CosmeticRule

	// negated are the generic class and ID selectors disabled on the hostname.
	negated []string
}

// hostnameKeys returns the keys of byHostname and negatedByHostname that may
// apply to the hostname.
func hostnameKeys(hostname, domain string) (keys []string) {
	return append(ufnet.Subdomains(hostname), rules.EntityKeys(hostname, domain)...)
}

// Match returns the rules matching the hostname with the registrable domain
// domain.  Generic rules are only included if withGeneric is true.
func (e *CosmeticEngine) Match(hostname, domain string, withGeneric bool) (m *cosmeticMatch) {
	m = &cosmeticMatch{}
	seen := map[uint64]struct{}{}

	add := func(id uint64) {
		if _, ok := seen[id]; ok {
			return
		}

		seen[id] = struct{}{}

		r := e.ruleStorage.RetrieveCosmeticRule(id)
		if r == nil || !r.Match(hostname, domain) {
			return
		}

		if r.Whitelist {
			m.exceptions = append(m.exceptions, r)
		} else {
			m.rules = append(m.rules, r)
		}
	}

	keys := hostnameKeys(hostname, domain)
	for _, k := range keys {
		for _, id := range e.byHostname[k] {
			add(id)
		}

		for _, id := range e.negatedByHostname[k] {
			if r := e.ruleStorage.RetrieveCosmeticRule(id); r != nil {
				m.negated = append(m.negated, r.Content)
			}
		}
	}

	for _, id := range e.genericExceptions {
		add(id)
	}

	for _, id := range e.generic {
		r := e.ruleStorage.RetrieveCosmeticRule(id)
		if withGeneric || (r != nil && r.Type == rules.CosmeticScriptlet) {
			add(id)
		}
	}

	return m
}

// ClassIDSelectors returns the generic selectors for the classes and the IDs.
func (e *CosmeticEngine) ClassIDSelectors(classes, ids []string) (selectors []string) {
	for _, class := range classes {
		selectors = e.appendContents(selectors, e.genericByClass[class])
	}

	for _, id := range ids {
		selectors = e.appendContents(selectors, e.genericByID[id])
	}

	return selectors
}

// appendContents appends the contents of the rules with the IDs to contents.
func (e *CosmeticEngine) appendContents(contents []string, ids []uint64) (res []string) {
	for _, id := range ids {
		if r := e.ruleStorage.RetrieveCosmeticRule(id); r != nil {
			contents = append(contents, r.Content)
		}
	}

	return contents
}
