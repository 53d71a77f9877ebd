package rules

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DomainResolver finds the registrable domain of a hostname.  It is supplied
// by the embedding host.
type DomainResolver interface {
	// ResolveDomain returns the byte offsets of the registrable domain within
	// hostname, so that hostname[start:end] is that domain.  Implementations
	// must be safe for concurrent use.
	ResolveDomain(hostname string) (start, end int)
}

// PublicSuffixResolver is a [DomainResolver] that uses the public suffix list
// from golang.org/x/net/publicsuffix.
type PublicSuffixResolver struct{}

// type check
var _ DomainResolver = PublicSuffixResolver{}

// ResolveDomain implements the [DomainResolver] interface for
// PublicSuffixResolver.  It is a faster version of
// publicsuffix.EffectiveTLDPlusOne that avoids using fmt.Errorf when the
// hostname is less or equal the suffix, in which case the whole hostname is
// returned.
func (PublicSuffixResolver) ResolveDomain(hostname string) (start, end int) {
	hostnameLen := len(hostname)
	if hostnameLen == 0 || hostname[0] == '.' || hostname[hostnameLen-1] == '.' {
		return 0, hostnameLen
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := hostnameLen - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return 0, hostnameLen
	}

	return 1 + strings.LastIndexByte(hostname[:i], '.'), hostnameLen
}

// RegistrableDomain returns the registrable domain of hostname using res.  If
// res is nil or returns offsets that don't describe a substring of hostname,
// hostname itself is returned.
func RegistrableDomain(res DomainResolver, hostname string) (domain string) {
	if res == nil || hostname == "" {
		return hostname
	}

	start, end := res.ResolveDomain(hostname)
	if start < 0 || start >= end || end > len(hostname) {
		return hostname
	}

	return hostname[start:end]
}
