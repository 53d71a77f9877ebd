package lookup_test

import (
	"testing"

	"github.com/AdguardTeam/blockengine/internal/lookup"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeqScanTable_TryAdd(t *testing.T) {
	t.Parallel()

	tbl := &lookup.SeqScanTable{}
	s := newStorage(t, testRuleText)

	require.True(t, t.Run("first", func(t *testing.T) {
		assertRuleIsAdded(t, tbl, s, assert.True)
	}))

	require.True(t, t.Run("same", func(t *testing.T) {
		assertRuleIsAdded(t, tbl, s, assert.False)
	}))

	assert.Equal(t, 1, tbl.Len())

	// The same text from another list is a different rule.
	other := newStorage(t, testRuleText)
	assertRuleIsAdded(t, tbl, other, assert.True)
	assert.Equal(t, 2, tbl.Len())
}

func TestSeqScanTable_MatchAll(t *testing.T) {
	t.Parallel()

	s := newStorage(t, testRuleTextAll)
	tbl := &lookup.SeqScanTable{}
	loadTable(t, tbl, s)

	testCases := []struct {
		name         string
		urlStr       string
		wantRuleText string
	}{{
		name:         "no_match",
		urlStr:       testURLStrNoMatch,
		wantRuleText: "",
	}, {
		name:         "match",
		urlStr:       testURLStrWithDomain,
		wantRuleText: testRule,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assertMatch(t, tbl, newRequest(tc.urlStr, tc.urlStr), tc.wantRuleText)
		})
	}
}

func BenchmarkSeqScanTable_MatchAll(b *testing.B) {
	s := newStorage(b, testRuleTextAll)
	tbl := &lookup.SeqScanTable{}
	loadTable(b, tbl, s)

	r := newRequest(testURLStrWithDomain, testURLStrWithDomain)

	var gotRules []*rules.NetworkRule

	b.ReportAllocs()
	for range b.N {
		gotRules = tbl.MatchAll(r, nil)
	}

	require.Len(b, gotRules, 1)
}

func BenchmarkSeqScanTable_MatchAll_filter(b *testing.B) {
	s := newStorage(b, string(filterData))
	tbl := &lookup.SeqScanTable{}
	loadTable(b, tbl, s)

	r := newRequest(testURLStrFilterDomain, testURLStrFilterDomain)

	var gotRules []*rules.NetworkRule

	b.ReportAllocs()
	for range b.N {
		gotRules = tbl.MatchAll(r, nil)
	}

	matched := false
	for _, got := range gotRules {
		matched = matched || got.Text() == testRuleFilterDomain
	}

	assert.True(b, matched)
}
