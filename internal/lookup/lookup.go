// Package lookup implements index structures that we use to improve matching
// speed in the engines.
package lookup

import "github.com/AdguardTeam/blockengine/rules"

// Table is a common interface for all lookup tables.
type Table interface {
	// TryAdd attempts to add the rule to the lookup table.  It returns
	// true/false depending on whether the rule is eligible for this lookup
	// table.  The rule must already be in the rule storage of the table.
	TryAdd(f *rules.NetworkRule) (ok bool)

	// MatchAll finds all matching rules from this lookup table.  c is used to
	// get the compiled patterns of the rules and may be nil.
	MatchAll(r *rules.Request, c rules.RegexpCache) (result []*rules.NetworkRule)
}

// ruleIn checks if the particular rule instance is contained by the slice of
// pointers.
func ruleIn(rule *rules.NetworkRule, rs []*rules.NetworkRule) (ok bool) {
	for _, r := range rs {
		if r == rule {
			return true
		}
	}

	return false
}
