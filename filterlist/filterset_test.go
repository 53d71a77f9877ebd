package filterlist_test

import (
	"testing"
	"time"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

func TestFilterSet_AddList(t *testing.T) {
	t.Parallel()

	s := filterlist.NewFilterSet(slogutil.NewDiscardLogger())

	md, err := s.AddList("! Title: Ads\n||ads.example^\n##.banner\n||bad^$unknown-modifier\n", nil)
	require.NoError(t, err)

	assert.Equal(t, "Ads", md.Title)
	assert.Equal(t, 2, md.RulesCount)
	assert.Equal(t, 1, md.InvalidCount)

	md, err = s.AddList("||ads.example^\n##.banner\n", &filterlist.ParseOptions{
		RuleTypes: filterlist.RuleTypesCosmeticOnly,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, md.RulesCount)

	_, err = s.AddList("||ads.example^\n\xff\xfe\n", nil)
	assert.ErrorIs(t, err, filterlist.ErrInvalidUTF8)

	lists := s.Lists()
	require.Len(t, lists, 2)

	assert.Equal(t, 0, lists[0].ID)
	assert.Equal(t, 1, lists[1].ID)
	assert.Equal(t, filterlist.RuleTypesCosmeticOnly, lists[1].Options.RuleTypes)
}

func TestFilterSet_NewRuleStorage(t *testing.T) {
	t.Parallel()

	const (
		trusted = rules.PermissionMask(1)
		custom  = rules.PermissionMask(2)
	)

	s := filterlist.NewFilterSet(slogutil.NewDiscardLogger())

	_, err := s.AddList("||ads.example^\n##.banner\n", &filterlist.ParseOptions{
		Permission: trusted,
	})
	require.NoError(t, err)

	_, err = s.AddList("||tracker.example^\n", &filterlist.ParseOptions{
		Permission: custom,
	})
	require.NoError(t, err)

	ctx := testutil.ContextWithTimeout(t, testTimeout)
	rs, err := s.NewRuleStorage(ctx)
	require.NoError(t, err)

	require.Equal(t, 3, rs.Len())

	nr := rs.RetrieveNetworkRule(0)
	require.NotNil(t, nr)

	assert.Equal(t, "||ads.example^", nr.Text())
	assert.Equal(t, uint64(0), nr.ID)
	assert.Equal(t, trusted, nr.Permission)

	cr := rs.RetrieveCosmeticRule(1)
	require.NotNil(t, cr)

	assert.Equal(t, uint64(1), cr.ID)
	assert.Equal(t, trusted, cr.Permission)

	nr = rs.RetrieveNetworkRule(2)
	require.NotNil(t, nr)

	assert.Equal(t, 1, nr.FilterListID)
	assert.Equal(t, custom, nr.Permission)

	// Every call creates new rules with the same IDs.
	other, err := s.NewRuleStorage(ctx)
	require.NoError(t, err)

	assert.NotSame(t, rs.RetrieveNetworkRule(0), other.RetrieveNetworkRule(0))
	assert.Equal(t, rs.TextSize(), other.TextSize())
}
