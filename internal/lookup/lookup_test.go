package lookup_test

import (
	"os"
	"testing"
	"time"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/internal/lookup"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// Common domains for tests.
const (
	testDomain      = "domain.example"
	testDomainNoMod = "nomod.domain.example"
	testDomainSub   = "sub.domain.example"
)

// Common rules for tests.
const (
	testRule                = "||" + testDomain + "^"
	testRuleNoDomain        = "||" + testDomainNoMod + "^"
	testRuleNoShortcutsTiny = "||tiny^"
	testRuleNoShortcutsURL  = "|ws://^"
	testRuleWithDomain      = "||" + testDomainSub + "^$domain=" + testDomain
)

// Common text rules for tests.
const (
	testRuleText                = testRule + "\n"
	testRuleTextNoDomain        = testRuleNoDomain + "\n"
	testRuleTextNoShortcutsTiny = testRuleNoShortcutsTiny + "\n"
	testRuleTextNoShortcutsURL  = testRuleNoShortcutsURL + "\n"
	testRuleTextWithDomain      = testRuleWithDomain + "\n"

	testRuleTextAll = testRuleText +
		testRuleTextNoDomain +
		testRuleTextNoShortcutsTiny +
		testRuleTextNoShortcutsURL +
		testRuleTextWithDomain
)

// Common URL strings for tests.
const (
	testURLStrNoDomain      = "https://" + testDomainNoMod + "/"
	testURLStrNoMatch       = "https://no-match.example/"
	testURLStrWithDomain    = "https://" + testDomain + "/"
	testURLStrWithSubdomain = "https://" + testDomainSub + "/"
)

// Common constants from the test filter for benchmarks.
//
// Keep in sync with ../../testdata/filter.txt.
const (
	testRuleFilterDomain = "||googleads.g.doubleclick.example/ads/preferences/" +
		"$domain=googleads.g.doubleclick.example"

	testURLStrFilterDomain = "https://googleads.g.doubleclick.example/ads/preferences/"
)

// filterData is the data of the test filter.
var filterData = errors.Must(os.ReadFile("../../testdata/filter.txt"))

// newRequest is a helper that creates a request using the public suffix list.
func newRequest(urlStr, srcURLStr string) (r *rules.Request) {
	return rules.NewRequest(urlStr, srcURLStr, rules.TypeOther, nil)
}

// newStorage is a helper that creates a rule storage for tests with the given
// rule text.  Cosmetic rules are not loaded.
func newStorage(tb testing.TB, text string) (s *filterlist.RuleStorage) {
	tb.Helper()

	set := filterlist.NewFilterSet(slogutil.NewDiscardLogger())
	_, err := set.AddList(text, &filterlist.ParseOptions{
		RuleTypes: filterlist.RuleTypesNetworkOnly,
	})
	require.NoError(tb, err)

	s, err = set.NewRuleStorage(testutil.ContextWithTimeout(tb, testTimeout))
	require.NoError(tb, err)

	return s
}

// assertMatch is a helper for matching a single rule in the table or, if
// wantRuleText is empty, that no rules are returned.
func assertMatch(
	tb testing.TB,
	tbl lookup.Table,
	r *rules.Request,
	wantRuleText string,
) {
	tb.Helper()

	gotRules := tbl.MatchAll(r, nil)

	if wantRuleText == "" {
		assert.Empty(tb, gotRules)

		return
	}

	require.Len(tb, gotRules, 1)

	assert.Equal(tb, wantRuleText, gotRules[0].RuleText)
}

// assertRuleIsAdded is a helper to assert if a single rule has been added to
// tbl.
func assertRuleIsAdded(
	tb testing.TB,
	tbl lookup.Table,
	s *filterlist.RuleStorage,
	want assert.BoolAssertionFunc,
) {
	tb.Helper()

	var num int
	sc := s.NewRuleStorageScanner()
	for sc.Scan() {
		num++

		r, _ := sc.Rule()
		want(tb, tbl.TryAdd(r.(*rules.NetworkRule)))
	}

	assert.Equal(tb, 1, num)
}

// loadTable is a helper that loads rules from s to tbl.
func loadTable(tb testing.TB, tbl lookup.Table, s *filterlist.RuleStorage) {
	tb.Helper()

	sc := s.NewRuleStorageScanner()
	for sc.Scan() {
		r, _ := sc.Rule()
		if nr, ok := r.(*rules.NetworkRule); ok {
			_ = tbl.TryAdd(nr)
		}
	}
}
