package blockengine

import (
	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/internal/lookup"
	"github.com/AdguardTeam/blockengine/rules"
)

// NetworkEngine is the engine that supports quick search over network rules.
type NetworkEngine struct {
	// ruleStorage is a storage for the network rules.  The lookup tables keep
	// the rule IDs and retrieve the rules from the storage when needed.
	ruleStorage *filterlist.RuleStorage

	// lookupTables is the array of lookup tables which we need to speed up
	// the matching speed.  The order of the lookup tables is important: a rule
	// is added to the first table that accepts it, so the faster tables go
	// first.
	lookupTables []lookup.Table

	// RulesCount is the count of rules added to the engine.
	RulesCount int
}

// NewNetworkEngine builds an instance of the network engine.  This method scans
// the specified rule storage and adds all rules.NetworkRule found there to the
// internal lookup tables.
func NewNetworkEngine(s *filterlist.RuleStorage) (engine *NetworkEngine) {
	engine = &NetworkEngine{
		ruleStorage: s,
		lookupTables: []lookup.Table{
			lookup.NewShortcutsTable(s),
			lookup.NewDomainsTable(s),
			&lookup.SeqScanTable{},
		},
	}

	scanner := s.NewRuleStorageScanner()
	for scanner.Scan() {
		f, _ := scanner.Rule()
		if rule, ok := f.(*rules.NetworkRule); ok {
			engine.addRule(rule)
		}
	}

	return engine
}

// MatchAll finds all rules matching the specified request regardless of the
// rule types.  It will find both exception and blocking rules.  c is used to
// get the compiled patterns and may be nil.
func (n *NetworkEngine) MatchAll(r *rules.Request, c rules.RegexpCache) (result []*rules.NetworkRule) {
	for _, table := range n.lookupTables {
		result = append(result, table.MatchAll(r, c)...)
	}

	return result
}

// addRule adds rule to the first lookup table accepting it.
func (n *NetworkEngine) addRule(f *rules.NetworkRule) {
	for _, table := range n.lookupTables {
		if table.TryAdd(f) {
			n.RulesCount++

			return
		}
	}
}
