package lookup

import (
	"math"
	"strings"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/internal/fasthash"
	"github.com/AdguardTeam/blockengine/rules"
)

// shortcutLength is the length of the rule shortcut parts used as keys.
const shortcutLength = 5

// ShortcutsTable is a table that relies on the rule "shortcuts" to quickly
// find matching rules.  Here's how it works:
//
//  1. We extract from the rule the longest substring without special
//     characters, this string is called a "shortcut".
//  2. We take a part of it of length shortcutLength and put it to the internal
//     hashmap.
//  3. When we match a request, we take all substrings of length
//     shortcutLength from it and check if there are any rules in the hashmap.
//
// Note that only the rules with a shortcut are eligible for this table.
type ShortcutsTable struct {
	// Storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// Map where the key is the hash of the shortcut and value is a list of
	// rules' IDs.
	shortcutsLookupTable map[uint32][]uint64

	// Histogram helps us choose the best shortcut for the shortcuts lookup
	// table.
	shortcutsHistogram map[uint32]int
}

// type check
var _ Table = (*ShortcutsTable)(nil)

// NewShortcutsTable creates a new instance of the ShortcutsTable.
func NewShortcutsTable(rs *filterlist.RuleStorage) (s *ShortcutsTable) {
	return &ShortcutsTable{
		ruleStorage:          rs,
		shortcutsLookupTable: map[uint32][]uint64{},
		shortcutsHistogram:   map[uint32]int{},
	}
}

// TryAdd implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) TryAdd(f *rules.NetworkRule) (ok bool) {
	shortcuts := getRuleShortcuts(f)
	if len(shortcuts) == 0 {
		return false
	}

	// Find the applicable shortcut, the least used one.
	var shortcutHash uint32
	minCount := math.MaxInt32
	for _, sc := range shortcuts {
		hash := fasthash.String(sc)
		if count := s.shortcutsHistogram[hash]; count < minCount {
			minCount = count
			shortcutHash = hash
		}
	}

	s.shortcutsHistogram[shortcutHash] = minCount + 1
	s.shortcutsLookupTable[shortcutHash] = append(s.shortcutsLookupTable[shortcutHash], f.ID)

	return true
}

// MatchAll implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) MatchAll(r *rules.Request, c rules.RegexpCache) (result []*rules.NetworkRule) {
	for i := 0; i <= len(r.URLLowerCase)-shortcutLength; i++ {
		hash := fasthash.Between(r.URLLowerCase, i, i+shortcutLength)
		matchingRules, ok := s.shortcutsLookupTable[hash]
		if !ok {
			continue
		}

		for _, id := range matchingRules {
			rule := s.ruleStorage.RetrieveNetworkRule(id)

			// Make sure that the same rule isn't returned twice.  This happens
			// when the URL has a repeating pattern.
			if rule == nil || ruleIn(rule, result) || !rule.Match(r, c) {
				continue
			}

			result = append(result, rule)
		}
	}

	return result
}

// getRuleShortcuts returns a list of shortcuts that can be used for the lookup
// table.
func getRuleShortcuts(f *rules.NetworkRule) (shortcuts []string) {
	if len(f.Shortcut) < shortcutLength || isAnyURLShortcut(f) {
		return nil
	}

	for i := 0; i <= len(f.Shortcut)-shortcutLength; i++ {
		shortcuts = append(shortcuts, f.Shortcut[i:i+shortcutLength])
	}

	return shortcuts
}

// isAnyURLShortcut checks if the rule potentially matches too many URLs.  We'd
// better use another type of lookup table for this kind of rules.
func isAnyURLShortcut(f *rules.NetworkRule) (ok bool) {
	switch shLen := len(f.Shortcut); {
	case
		shLen < len("ws://")+1 && strings.HasPrefix(f.Shortcut, "ws:"),
		shLen < len("wss://")+1 && strings.HasPrefix(f.Shortcut, "wss:"),
		shLen < len("https://")+1 && strings.HasPrefix(f.Shortcut, "http"):
		return true
	default:
		return false
	}
}
