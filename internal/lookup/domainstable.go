package lookup

import (
	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/internal/fasthash"
	"github.com/AdguardTeam/blockengine/internal/ufnet"
	"github.com/AdguardTeam/blockengine/rules"
)

// DomainsTable is a lookup table that uses domains from the $domain modifier
// to speed up the rules search.  Only the rules with $domain modifier are
// eligible for this lookup table.  Entity domains like "example.*" are keyed
// as is.
type DomainsTable struct {
	// Storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// Domain lookup table.  Key is the domain name hash.
	domainsLookupTable map[uint32][]uint64
}

// type check
var _ Table = (*DomainsTable)(nil)

// NewDomainsTable creates a new instance of the DomainsTable.
func NewDomainsTable(rs *filterlist.RuleStorage) (s *DomainsTable) {
	return &DomainsTable{
		ruleStorage:        rs,
		domainsLookupTable: map[uint32][]uint64{},
	}
}

// TryAdd implements the [Table] interface for *DomainsTable.
func (d *DomainsTable) TryAdd(f *rules.NetworkRule) (ok bool) {
	permittedDomains := f.GetPermittedDomains()
	if len(permittedDomains) == 0 {
		return false
	}

	for _, domain := range permittedDomains {
		hash := fasthash.String(domain)
		d.domainsLookupTable[hash] = append(d.domainsLookupTable[hash], f.ID)
	}

	return true
}

// MatchAll implements the [Table] interface for *DomainsTable.
func (d *DomainsTable) MatchAll(r *rules.Request, c rules.RegexpCache) (result []*rules.NetworkRule) {
	if r.SourceHostname == "" {
		return result
	}

	for _, domain := range ufnet.Subdomains(r.SourceHostname) {
		result = d.appendMatching(result, fasthash.String(domain), r, c)
	}

	for _, key := range rules.EntityKeys(r.SourceHostname, r.SourceDomain) {
		result = d.appendMatching(result, fasthash.String(key), r, c)
	}

	return result
}

// appendMatching appends the rules stored under hash that match r to result.
// A rule with several permitted domains may be stored under several keys, so
// the duplicates are skipped.
func (d *DomainsTable) appendMatching(
	result []*rules.NetworkRule,
	hash uint32,
	r *rules.Request,
	c rules.RegexpCache,
) (res []*rules.NetworkRule) {
	for _, id := range d.domainsLookupTable[hash] {
		rule := d.ruleStorage.RetrieveNetworkRule(id)
		if rule != nil && !ruleIn(rule, result) && rule.Match(r, c) {
			result = append(result, rule)
		}
	}

	return result
}
