package blockengine_test

import (
	"encoding/json"
	"testing"

	"github.com/AdguardTeam/blockengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wrapScriptlet returns the injected form of the scriptlet code.
func wrapScriptlet(code string) (wrapped string) {
	return "try {\n" + code + "\n} catch ( e ) { }\n"
}

func TestEngine_URLCosmeticResources(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testFilterData)
	require.NoError(t, e.UseResources(testResourcesJSON(t)))

	setConstant := wrapScriptlet("setConstant('canRunAds', 'true');")

	testCases := []struct {
		want *blockengine.URLResources
		name string
		url  string
	}{{
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{},
			HideSelectors: []string{
				".cookie-notice",
				".popup-overlay",
				".promo-box",
				`div[id^="google_ads_"]`,
			},
			InjectedScript: setConstant,
		},
		name: "specific",
		url:  "https://example.com/page",
	}, {
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{},
			HideSelectors: []string{
				".cookie-notice",
				".popup-overlay",
				".promo-box",
				`div[id^="google_ads_"]`,
			},
			InjectedScript: setConstant,
		},
		name: "subdomain_missing_scriptlet",
		url:  "https://video.example.com/watch",
	}, {
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{},
			HideSelectors:  []string{".cookie-notice", `div[id^="google_ads_"]`},
		},
		name: "entity",
		url:  "https://www.example.org/",
	}, {
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{
				"body": {"overflow: auto !important;"},
			},
			HideSelectors:     []string{`div[id^="google_ads_"]`},
			ProceduralActions: []string{"div.story:has-text(Sponsored)"},
		},
		name: "css_and_procedural",
		url:  "https://news.example/story",
	}, {
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{},
			Exceptions:     []string{".sponsored"},
			Generichide:    true,
		},
		name: "generichide",
		url:  "https://shop.example/cart",
	}, {
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{},
			Generichide:    true,
		},
		name: "document_exception",
		url:  "https://bank.example/login",
	}, {
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{},
			Generichide:    true,
		},
		name: "elemhide",
		url:  "https://webmail.example/inbox",
	}, {
		want: &blockengine.URLResources{
			StyleSelectors: map[string][]string{},
		},
		name: "no_hostname",
		url:  "not a url",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := e.URLCosmeticResources(tc.url)
			require.NotNil(t, res)

			assert.Equal(t, tc.want.StyleSelectors, res.StyleSelectors)
			assert.ElementsMatch(t, tc.want.HideSelectors, res.HideSelectors)
			assert.ElementsMatch(t, tc.want.ProceduralActions, res.ProceduralActions)
			assert.ElementsMatch(t, tc.want.Exceptions, res.Exceptions)
			assert.Equal(t, tc.want.InjectedScript, res.InjectedScript)
			assert.Equal(t, tc.want.Generichide, res.Generichide)
		})
	}
}

func TestEngine_URLCosmeticResources_scriptlets(t *testing.T) {
	t.Parallel()

	const rulesText = `example.org##+js(set-constant, a, 1)
example.org##+js(set-constant.js, b, 2)
example.org##+js(set-constant, a, 1)
sub.example.org#@#+js(set-constant, a, 1)
all.example.org#@#+js()
named.example.org#@#+js(set-constant)
@@||nojs.example.org^$jsinject`

	e := newTestEngine(t, rulesText)
	require.NoError(t, e.UseResources(testResourcesJSON(t)))

	a := wrapScriptlet("setConstant('a', '1');")
	b := wrapScriptlet("setConstant('b', '2');")

	testCases := []struct {
		name string
		url  string
		want string
	}{{
		name: "all",
		url:  "https://example.org/",
		want: a + b,
	}, {
		name: "exception_with_args",
		url:  "https://sub.example.org/",
		want: b,
	}, {
		name: "exception_all",
		url:  "https://all.example.org/",
		want: "",
	}, {
		name: "exception_by_name",
		url:  "https://named.example.org/",
		want: "",
	}, {
		name: "jsinject",
		url:  "https://nojs.example.org/",
		want: "",
	}, {
		name: "other",
		url:  "https://example.net/",
		want: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, e.URLCosmeticResources(tc.url).InjectedScript)
		})
	}
}

func TestEngine_URLCosmeticResources_noResources(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, "example.org##+js(set-constant, a, 1)")

	assert.Empty(t, e.URLCosmeticResources("https://example.org/").InjectedScript)
}

func TestEngine_URLCosmeticResources_json(t *testing.T) {
	t.Parallel()

	const rulesText = `example.org##.banner
example.org#$#.ad { display: none; }
example.org#?#div:has-text(Ad)
example.org#@#.banner-wide
@@||example.org^$generichide`

	e := newTestEngine(t, rulesText)

	data, err := json.Marshal(e.URLCosmeticResources("https://example.org/"))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"style_selectors": {".ad": ["display: none;"]},
		"hide_selectors": [".banner"],
		"procedural_actions": ["div:has-text(Ad)"],
		"exceptions": [".banner-wide"],
		"injected_script": "",
		"generichide": true
	}`, string(data))
}

func TestEngine_HiddenClassIDSelectors(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, testFilterData)

	testCases := []struct {
		name       string
		classes    []string
		ids        []string
		exceptions []string
		want       []string
	}{{
		name:       "classes_and_ids",
		classes:    []string{"ad-banner", "sponsored", "adsbygoogle", "unknown"},
		ids:        []string{"ad-sidebar", "content"},
		exceptions: nil,
		want:       []string{"#ad-sidebar", ".ad-banner", ".adsbygoogle > div", ".sponsored"},
	}, {
		name:       "exceptions",
		classes:    []string{"ad-banner", "sponsored"},
		ids:        nil,
		exceptions: []string{".sponsored"},
		want:       []string{".ad-banner"},
	}, {
		name:       "duplicates",
		classes:    []string{"ad-banner", "ad-banner"},
		ids:        nil,
		exceptions: nil,
		want:       []string{".ad-banner"},
	}, {
		name:       "none",
		classes:    []string{"content"},
		ids:        []string{"main"},
		exceptions: nil,
		want:       nil,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := e.HiddenClassIDSelectors(tc.classes, tc.ids, tc.exceptions)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEngine_HiddenClassIDSelectors_restrictedDomain(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, "~safe.example##.ad-slot\n##.ad-slot-2")

	safe := e.URLCosmeticResources("https://www.safe.example/")
	assert.Equal(t, []string{".ad-slot"}, safe.Exceptions)
	assert.Empty(t, safe.HideSelectors)

	other := e.URLCosmeticResources("https://other.example/")
	assert.Empty(t, other.Exceptions)

	classes := []string{"ad-slot", "ad-slot-2"}
	assert.Equal(t, []string{".ad-slot-2"}, e.HiddenClassIDSelectors(classes, nil, safe.Exceptions))
	assert.Equal(
		t,
		[]string{".ad-slot", ".ad-slot-2"},
		e.HiddenClassIDSelectors(classes, nil, other.Exceptions),
	)
}
