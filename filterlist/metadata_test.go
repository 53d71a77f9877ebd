package filterlist_test

import (
	"testing"
	"time"

	"github.com/AdguardTeam/blockengine/filterlist"
	"github.com/stretchr/testify/assert"
)

func TestReadMetadata(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		want *filterlist.Metadata
		name string
		text string
	}{{
		want: &filterlist.Metadata{},
		name: "empty",
		text: "",
	}, {
		want: &filterlist.Metadata{
			Title:    "Test Filter",
			Homepage: "https://filters.example/",
			Expires:  4 * 24 * time.Hour,
		},
		name: "full",
		text: "[Adblock Plus 2.0]\n" +
			"! Title: Test Filter\n" +
			"! Homepage: https://filters.example/\n" +
			"! Expires: 4 days (update frequency)\n" +
			"||example.org^\n",
	}, {
		want: &filterlist.Metadata{
			Expires: 12 * time.Hour,
		},
		name: "hours",
		text: "! Expires: 12 hours\n",
	}, {
		want: &filterlist.Metadata{},
		name: "bad_expires",
		text: "! Expires: soon\n! Expires: -1 days\n",
	}, {
		want: &filterlist.Metadata{
			Title: "First",
		},
		name: "header_only",
		text: "! Title: First\n||example.org^\n! Homepage: https://late.example/\n",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, filterlist.ReadMetadata(tc.text))
		})
	}
}
