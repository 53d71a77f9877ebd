package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// fnResolver is a [DomainResolver] implemented by a function.
type fnResolver func(hostname string) (start, end int)

// ResolveDomain implements the [DomainResolver] interface for fnResolver.
func (f fnResolver) ResolveDomain(hostname string) (start, end int) {
	return f(hostname)
}

func TestPublicSuffixResolver(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		hostname string
		want     string
	}{
		{hostname: "example.org", want: "example.org"},
		{hostname: "sub.example.org", want: "example.org"},
		{hostname: "a.b.example.co.uk", want: "example.co.uk"},
		{hostname: "co.uk", want: "co.uk"},
		{hostname: "localhost", want: "localhost"},
		{hostname: ".example.org", want: ".example.org"},
		{hostname: "", want: ""},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, RegistrableDomain(PublicSuffixResolver{}, tc.hostname), tc.hostname)
	}
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		res  DomainResolver
		name string
		want string
	}{{
		res:  nil,
		name: "nil",
		want: "www.example.org",
	}, {
		res:  fnResolver(func(h string) (start, end int) { return 4, len(h) }),
		name: "valid",
		want: "example.org",
	}, {
		res:  fnResolver(func(h string) (start, end int) { return -1, len(h) }),
		name: "negative_start",
		want: "www.example.org",
	}, {
		res:  fnResolver(func(h string) (start, end int) { return 0, len(h) + 1 }),
		name: "end_out_of_range",
		want: "www.example.org",
	}, {
		res:  fnResolver(func(h string) (start, end int) { return 5, 5 }),
		name: "empty",
		want: "www.example.org",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, RegistrableDomain(tc.res, "www.example.org"))
		})
	}
}
