package blockengine_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/AdguardTeam/blockengine"
	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/patterncache"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRuleStorage returns a rule storage with the rules from rulesText.
func newTestRuleStorage(tb testing.TB, rulesText string) (s *filterlist.RuleStorage) {
	tb.Helper()

	set := filterlist.NewFilterSet(slogutil.NewDiscardLogger())
	_, err := set.AddList(rulesText, nil)
	require.NoError(tb, err)

	s, err = set.NewRuleStorage(testutil.ContextWithTimeout(tb, testTimeout))
	require.NoError(tb, err)

	return s
}

// matchedTexts returns the sorted texts of rs.
func matchedTexts(rs []*rules.NetworkRule) (texts []string) {
	for _, r := range rs {
		texts = append(texts, r.RuleText)
	}

	slices.Sort(texts)

	return texts
}

func TestNetworkEngine_MatchAll(t *testing.T) {
	t.Parallel()

	rulesText := strings.Join([]string{
		"||example.org^$script",
		"@@http://example.org^",
		"||test.example.org^$important",
		"/banner/",
		"ads$domain=example.net",
		"||example.com^$removeparam=utm_source",
	}, "\n")

	engine := blockengine.NewNetworkEngine(newTestRuleStorage(t, rulesText))
	assert.Equal(t, 6, engine.RulesCount)

	testCases := []struct {
		name    string
		url     string
		source  string
		reqType rules.RequestType
		want    []string
	}{{
		name:    "empty",
		url:     "https://other.example/",
		reqType: rules.TypeOther,
		want:    nil,
	}, {
		name:    "block_and_exception",
		url:     "http://example.org/",
		reqType: rules.TypeScript,
		want:    []string{"@@http://example.org^", "||example.org^$script"},
	}, {
		name:    "request_type",
		url:     "http://example.org/",
		reqType: rules.TypeImage,
		want:    []string{"@@http://example.org^"},
	}, {
		name:    "important_subdomain",
		url:     "https://test.example.org/",
		reqType: rules.TypeImage,
		want:    []string{"||test.example.org^$important"},
	}, {
		name:    "seq_scan",
		url:     "https://cdn.example/banner/1.png",
		reqType: rules.TypeImage,
		want:    []string{"/banner/"},
	}, {
		name:    "source_domain",
		url:     "https://cdn.example/ads.js",
		source:  "https://example.net/",
		reqType: rules.TypeScript,
		want:    []string{"ads$domain=example.net"},
	}, {
		name:    "modifier",
		url:     "https://www.example.com/?utm_source=1",
		reqType: rules.TypeDocument,
		want:    []string{"||example.com^$removeparam=utm_source"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.url, tc.source, tc.reqType, rules.PublicSuffixResolver{})
			assert.Equal(t, tc.want, matchedTexts(engine.MatchAll(r, nil)))
		})
	}
}

func TestNetworkEngine_MatchAll_cache(t *testing.T) {
	t.Parallel()

	engine := blockengine.NewNetworkEngine(newTestRuleStorage(t, testFilterData))
	cache := patterncache.New(&patterncache.Config{
		Logger:  slogutil.NewDiscardLogger(),
		Clock:   timeutil.SystemClock{},
		Metrics: patterncache.EmptyMetrics{},
	})

	r := rules.NewRequest(
		"https://cdn.example/banner/ad-1.png",
		"https://news.example/",
		rules.TypeImage,
		rules.PublicSuffixResolver{},
	)

	// The results don't depend on whether the patterns are cached.
	want := matchedTexts(engine.MatchAll(r, nil))
	require.NotEmpty(t, want)

	assert.Equal(t, want, matchedTexts(engine.MatchAll(r, cache)))
	assert.Positive(t, cache.Len())

	assert.Equal(t, want, matchedTexts(engine.MatchAll(r, cache)))
}

func BenchmarkNetworkEngine_MatchAll(b *testing.B) {
	engine := blockengine.NewNetworkEngine(newTestRuleStorage(b, testFilterData))
	r := rules.NewRequest(
		"https://ads.example.com/script.js",
		"https://news.example/",
		rules.TypeScript,
		rules.PublicSuffixResolver{},
	)

	var res []*rules.NetworkRule

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		res = engine.MatchAll(r, nil)
	}

	require.NotEmpty(b, res)
}
