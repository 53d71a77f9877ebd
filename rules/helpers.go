package rules

import (
	"strings"
)

// splitWithEscapeCharacter splits string by the specified separator if it is not escaped
func splitWithEscapeCharacter(str string, sep, escapeCharacter byte, preserveAllTokens bool) []string {
	parts := make([]string, 0)

	if str == "" {
		return parts
	}

	var sb strings.Builder
	escaped := false
	for i := range len(str) {
		c := str[i]

		if c == escapeCharacter {
			escaped = true
		} else if c == sep {
			if escaped {
				sb.WriteByte(c)
				escaped = false
			} else if preserveAllTokens || sb.Len() > 0 {
				parts = append(parts, sb.String())
				sb.Reset()
			}
		} else {
			if escaped {
				escaped = false
				sb.WriteByte(escapeCharacter)
			}
			sb.WriteByte(c)
		}
	}

	if preserveAllTokens || sb.Len() > 0 {
		parts = append(parts, sb.String())
	}

	return parts
}

// stringArraysEquals checks if arrays are equal
func stringArraysEquals(l, r []string) bool {
	if len(l) != len(r) {
		return false
	}

	for i := range l {
		if l[i] != r[i] {
			return false
		}
	}

	return true
}

// matchDomains checks if hostname is one of domains or a subdomain of any of
// them.  domain is the registrable domain of hostname, it is used to match
// entity domains like "google.*", which match "google" under any public
// suffix.
func matchDomains(hostname, domain string, domains []string) (ok bool) {
	for _, d := range domains {
		if isWildcardDomain(d) {
			if matchEntity(hostname, domain, d[:len(d)-len(".*")]) {
				return true
			}
		} else if isSubdomainOrSame(hostname, d) {
			return true
		}
	}

	return false
}

// isSubdomainOrSame returns true if hostname is d or a subdomain of d.
func isSubdomainOrSame(hostname, d string) (ok bool) {
	if !strings.HasSuffix(hostname, d) {
		return false
	}

	i := len(hostname) - len(d)

	return i == 0 || hostname[i-1] == '.'
}

// matchEntity returns true if hostname without its public suffix is entity or
// a subdomain of it.  The public suffix is everything after the first label
// of domain.
func matchEntity(hostname, domain, entity string) (ok bool) {
	dot := strings.IndexByte(domain, '.')
	if dot < 0 {
		return false
	}

	suffix := domain[dot:]
	if !strings.HasSuffix(hostname, suffix) {
		return false
	}

	return isSubdomainOrSame(hostname[:len(hostname)-len(suffix)], entity)
}

// EntityKeys returns the keys under which rules with entity domains like
// "example.*" are indexed that may apply to hostname with the registrable
// domain domain.  For "www.example.co.uk" it returns "www.example.*" and
// "example.*".
func EntityKeys(hostname, domain string) (keys []string) {
	dot := strings.IndexByte(domain, '.')
	if dot < 0 || !strings.HasSuffix(hostname, domain) {
		return nil
	}

	name := hostname[:len(hostname)-len(domain)+dot]
	for name != "" {
		keys = append(keys, name+".*")

		i := strings.IndexByte(name, '.')
		if i < 0 {
			break
		}

		name = name[i+1:]
	}

	return keys
}
