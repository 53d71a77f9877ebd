package rules

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternToRegexp(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		pattern string
		want    string
	}{{
		name:    "plain_url",
		pattern: "||example.org^",
		want:    RegexStartURL + "example\\.org" + RegexSeparator,
	}, {
		name:    "url_with_path",
		pattern: "|https://example.org/[*]^",
		want: RegexStartString + "https:\\/\\/example\\.org\\/\\[" + RegexAnyCharacter + "\\]" +
			RegexSeparator,
	}, {
		name:    "url_without_path",
		pattern: "|https://example.org|",
		want:    RegexStartString + "https:\\/\\/example\\.org" + RegexEndString,
	}, {
		name:    "single_slash",
		pattern: "/",
		want:    "\\/",
	}, {
		name:    "empty_regexp",
		pattern: "//",
		want:    "",
	}, {
		name:    "regexp",
		pattern: "/banner\\d+/",
		want:    "banner\\d+",
	}, {
		name:    "any",
		pattern: "*",
		want:    RegexAnyCharacter,
	}, {
		name:    "special_characters",
		pattern: "/ads?id=(1)+",
		want:    "\\/ads\\?id=\\(1\\)\\+",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := patternToRegexp(tc.pattern)
			assert.Equal(t, tc.want, got)

			_, err := regexp.Compile(got)
			require.NoError(t, err)
		})
	}
}

func TestIsRegexPattern(t *testing.T) {
	t.Parallel()

	assert.True(t, isRegexPattern("/banner/"))
	assert.True(t, isRegexPattern("//"))
	assert.False(t, isRegexPattern("/"))
	assert.False(t, isRegexPattern("/banner"))
	assert.False(t, isRegexPattern("||example.org^"))
}
