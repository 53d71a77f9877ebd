package lookup

import (
	"github.com/AdguardTeam/blockengine/rules"
)

// SeqScanTable is basically just a list of network rules that are scanned
// sequentially.  Here we put the rules that are not eligible for other tables.
type SeqScanTable struct {
	rules []*rules.NetworkRule
}

// type check
var _ Table = (*SeqScanTable)(nil)

// TryAdd implements the [Table] interface for *SeqScanTable.  It only returns
// false if f has already been added.
func (s *SeqScanTable) TryAdd(f *rules.NetworkRule) (ok bool) {
	if ruleIn(f, s.rules) {
		return false
	}

	s.rules = append(s.rules, f)

	return true
}

// MatchAll implements the [Table] interface for *SeqScanTable.
func (s *SeqScanTable) MatchAll(r *rules.Request, c rules.RegexpCache) (result []*rules.NetworkRule) {
	for _, rule := range s.rules {
		if rule.Match(r, c) {
			result = append(result, rule)
		}
	}

	return result
}

// Len returns the number of rules in the table.
func (s *SeqScanTable) Len() (n int) {
	return len(s.rules)
}
