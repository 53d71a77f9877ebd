package filterlist

import (
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/c2h5oh/datasize"
)

// RuleStorage keeps all the rules of an engine in a dense array.  The ID of a
// rule is its index in that array.  It is stable for the lifetime of the
// storage and means nothing outside of it.
//
// The lookup tables keep rule IDs instead of the rules themselves and retrieve
// the rules from the storage when it's needed.
//
// RuleStorage is not safe for concurrent writes, but it is safe for concurrent
// reads once it's filled.
type RuleStorage struct {
	// rules are the stored rules, indexed by ID.
	rules []rules.Rule

	// textSize is the total size of the stored rules' texts.
	textSize datasize.ByteSize
}

// NewRuleStorage returns a new empty rule storage.
func NewRuleStorage() (s *RuleStorage) {
	return &RuleStorage{}
}

// Add stores r and sets its ID.  r must be either a *rules.NetworkRule or a
// *rules.CosmeticRule.
func (s *RuleStorage) Add(r rules.Rule) (id uint64) {
	id = uint64(len(s.rules))
	switch r := r.(type) {
	case *rules.NetworkRule:
		r.ID = id
	case *rules.CosmeticRule:
		r.ID = id
	}

	s.rules = append(s.rules, r)
	s.textSize += datasize.ByteSize(len(r.Text()))

	return id
}

// RetrieveRule returns the rule with the given id.
func (s *RuleStorage) RetrieveRule(id uint64) (r rules.Rule, err error) {
	if id >= uint64(len(s.rules)) {
		return nil, ErrRuleRetrieval
	}

	return s.rules[id], nil
}

// RetrieveNetworkRule is a helper method that retrieves a network rule from the
// storage.  It returns nil if there is no network rule with this id.
func (s *RuleStorage) RetrieveNetworkRule(id uint64) (nr *rules.NetworkRule) {
	r, err := s.RetrieveRule(id)
	if err != nil {
		return nil
	}

	nr, _ = r.(*rules.NetworkRule)

	return nr
}

// RetrieveCosmeticRule is a helper method that retrieves a cosmetic rule from
// the storage.  It returns nil if there is no cosmetic rule with this id.
func (s *RuleStorage) RetrieveCosmeticRule(id uint64) (cr *rules.CosmeticRule) {
	r, err := s.RetrieveRule(id)
	if err != nil {
		return nil
	}

	cr, _ = r.(*rules.CosmeticRule)

	return cr
}

// Len returns the number of stored rules.
func (s *RuleStorage) Len() (n int) {
	return len(s.rules)
}

// TextSize returns the total size of the texts of the stored rules.
func (s *RuleStorage) TextSize() (size datasize.ByteSize) {
	return s.textSize
}

// NewRuleStorageScanner returns a scanner over all rules of the storage in the
// order of their IDs.
func (s *RuleStorage) NewRuleStorageScanner() (sc *RuleStorageScanner) {
	return &RuleStorageScanner{
		storage: s,
		next:    0,
	}
}

// RuleStorageScanner scans the rules of a [RuleStorage].
type RuleStorageScanner struct {
	// storage is the storage being scanned.
	storage *RuleStorage

	// next is the ID of the next rule.
	next uint64
}

// Scan advances the scanner to the next rule.  It returns false when there are
// no more rules.
func (sc *RuleStorageScanner) Scan() (ok bool) {
	if sc.next >= uint64(len(sc.storage.rules)) {
		return false
	}

	sc.next++

	return true
}

// Rule returns the current rule and its ID.  It returns nil if Scan has not
// been called or has returned false.
func (sc *RuleStorageScanner) Rule() (r rules.Rule, id uint64) {
	if sc.next == 0 {
		return nil, 0
	}

	id = sc.next - 1

	return sc.storage.rules[id], id
}
