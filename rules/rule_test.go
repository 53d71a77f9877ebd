package rules

import (
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRule(t *testing.T) {
	t.Parallel()

	t.Run("comments", func(t *testing.T) {
		t.Parallel()

		for _, line := range []string{
			"",
			"   ",
			"! comment",
			"# comment",
			"#",
			"[Adblock Plus 2.0]",
		} {
			r, err := NewRule(line, 1)
			assert.NoError(t, err, line)
			assert.Nil(t, r, line)
		}
	})

	t.Run("network", func(t *testing.T) {
		t.Parallel()

		r, err := NewRule("  ||example.org^$script  ", 1)
		require.NoError(t, err)

		f, ok := r.(*NetworkRule)
		require.True(t, ok)

		assert.Equal(t, "||example.org^$script", f.Text())
		assert.Equal(t, 1, f.GetFilterListID())
	})

	t.Run("cosmetic", func(t *testing.T) {
		t.Parallel()

		r, err := NewRule("##.banner", 2)
		require.NoError(t, err)

		f, ok := r.(*CosmeticRule)
		require.True(t, ok)

		assert.Equal(t, "##.banner", f.Text())
		assert.Equal(t, 2, f.GetFilterListID())
	})

	t.Run("syntax_error", func(t *testing.T) {
		t.Parallel()

		r, err := NewRule("||example.org^$unknown-modifier", 1)
		assert.Nil(t, r)

		serr := &RuleSyntaxError{}
		require.True(t, errors.As(err, &serr))

		assert.Equal(t, "||example.org^$unknown-modifier", serr.ruleText)
	})

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()

		_, err := NewRule("example.org#%#window.ads = false;", 1)
		assert.ErrorIs(t, err, ErrUnsupportedRule)
	})
}

func TestPermissionMask_Has(t *testing.T) {
	t.Parallel()

	const (
		trusted PermissionMask = 1 << iota
		custom
	)

	assert.True(t, PermissionMask(0).Has(0))
	assert.True(t, trusted.Has(0))
	assert.True(t, (trusted | custom).Has(trusted))
	assert.True(t, (trusted | custom).Has(trusted|custom))
	assert.False(t, trusted.Has(custom))
	assert.False(t, trusted.Has(trusted|custom))
	assert.False(t, PermissionMask(0).Has(trusted))
}
