package lookup_test

import (
	"testing"

	"github.com/AdguardTeam/blockengine/internal/lookup"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainsTable_TryAdd(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		want assert.BoolAssertionFunc
		name string
		text string
	}{{
		want: assert.False,
		name: "no_domain",
		text: testRuleTextNoDomain,
	}, {
		want: assert.True,
		name: "domain",
		text: testRuleTextWithDomain,
	}, {
		want: assert.False,
		name: "restricted_domain_only",
		text: "||" + testDomainSub + "^$domain=~" + testDomain + "\n",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newStorage(t, tc.text)
			tbl := lookup.NewDomainsTable(s)
			assertRuleIsAdded(t, tbl, s, tc.want)
		})
	}
}

func TestDomainsTable_MatchAll(t *testing.T) {
	t.Parallel()

	s := newStorage(t, testRuleTextAll)
	tbl := lookup.NewDomainsTable(s)
	loadTable(t, tbl, s)

	testCases := []struct {
		name         string
		urlStr       string
		srcURLStr    string
		wantRuleText string
	}{{
		name:         "no_match",
		urlStr:       testURLStrNoDomain,
		srcURLStr:    testURLStrNoDomain,
		wantRuleText: "",
	}, {
		name:         "no_src",
		urlStr:       testURLStrWithSubdomain,
		srcURLStr:    "",
		wantRuleText: "",
	}, {
		name:         "match_domain",
		urlStr:       testURLStrWithSubdomain,
		srcURLStr:    testURLStrWithDomain,
		wantRuleText: testRuleWithDomain,
	}, {
		name:         "match_subdomain",
		urlStr:       testURLStrWithSubdomain,
		srcURLStr:    testURLStrWithSubdomain,
		wantRuleText: testRuleWithDomain,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assertMatch(t, tbl, newRequest(tc.urlStr, tc.srcURLStr), tc.wantRuleText)
		})
	}
}

func TestDomainsTable_MatchAll_entity(t *testing.T) {
	t.Parallel()

	const ruleText = "||ads.example.org^$domain=news.*"

	s := newStorage(t, ruleText+"\n")
	tbl := lookup.NewDomainsTable(s)
	loadTable(t, tbl, s)

	testCases := []struct {
		name         string
		srcURLStr    string
		wantRuleText string
	}{{
		name:         "registrable",
		srcURLStr:    "https://news.co.uk/",
		wantRuleText: ruleText,
	}, {
		name:         "subdomain",
		srcURLStr:    "https://www.news.com/",
		wantRuleText: ruleText,
	}, {
		name:         "not_entity",
		srcURLStr:    "https://news.example.com/",
		wantRuleText: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := newRequest("https://ads.example.org/", tc.srcURLStr)
			assertMatch(t, tbl, r, tc.wantRuleText)
		})
	}
}

func TestDomainsTable_MatchAll_noDuplicates(t *testing.T) {
	t.Parallel()

	const ruleText = "||ads.example.org^$domain=" + testDomain + "|" + testDomainSub

	s := newStorage(t, ruleText+"\n")
	tbl := lookup.NewDomainsTable(s)
	loadTable(t, tbl, s)

	assertMatch(t, tbl, newRequest("https://ads.example.org/", testURLStrWithSubdomain), ruleText)
}

func BenchmarkDomainsTable_MatchAll(b *testing.B) {
	s := newStorage(b, testRuleTextAll)
	tbl := lookup.NewDomainsTable(s)
	loadTable(b, tbl, s)

	r := newRequest(testURLStrWithSubdomain, testURLStrWithDomain)

	var gotRules []*rules.NetworkRule

	b.ReportAllocs()
	for range b.N {
		gotRules = tbl.MatchAll(r, nil)
	}

	require.Len(b, gotRules, 1)
}

func BenchmarkDomainsTable_MatchAll_filter(b *testing.B) {
	s := newStorage(b, string(filterData))
	tbl := lookup.NewDomainsTable(s)
	loadTable(b, tbl, s)

	r := newRequest(testURLStrFilterDomain, testURLStrFilterDomain)

	var gotRules []*rules.NetworkRule

	b.ReportAllocs()
	for range b.N {
		gotRules = tbl.MatchAll(r, nil)
	}

	require.NotEmpty(b, gotRules)
}
