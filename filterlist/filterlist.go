// Package filterlist contains the filter list parsing and the storage of the
// parsed rules.
package filterlist

import (
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrInvalidUTF8 is returned when the text of a filter list is not valid
	// UTF-8.  The whole list is rejected in that case.
	ErrInvalidUTF8 errors.Error = "filter list is not valid utf-8"

	// ErrRuleRetrieval is returned when a rule cannot be found in a storage.
	ErrRuleRetrieval errors.Error = "cannot retrieve the rule"
)

// RuleTypes defines which kinds of rules are loaded from a filter list.
type RuleTypes uint8

// RuleTypes values.
const (
	// RuleTypesAll loads both network and cosmetic rules.
	RuleTypesAll RuleTypes = iota

	// RuleTypesNetworkOnly loads network rules only.
	RuleTypesNetworkOnly

	// RuleTypesCosmeticOnly loads cosmetic rules only.
	RuleTypesCosmeticOnly
)

// String implements the [fmt.Stringer] interface for RuleTypes.
func (t RuleTypes) String() (s string) {
	switch t {
	case RuleTypesAll:
		return "all"
	case RuleTypesNetworkOnly:
		return "network"
	case RuleTypesCosmeticOnly:
		return "cosmetic"
	default:
		return "unknown"
	}
}

// accepts returns true if rules of the given kind pass the filter.
func (t RuleTypes) accepts(r rules.Rule) (ok bool) {
	switch r.(type) {
	case *rules.NetworkRule:
		return t != RuleTypesCosmeticOnly
	case *rules.CosmeticRule:
		return t != RuleTypesNetworkOnly
	default:
		return false
	}
}

// ParseOptions are the options for loading a single filter list.
type ParseOptions struct {
	// RuleTypes restricts the kinds of rules loaded from the list.
	RuleTypes RuleTypes

	// Permission is the permission mask attached to every rule of the list.
	Permission rules.PermissionMask
}
