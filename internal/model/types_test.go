package model

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupsKeepUpstreamOrder(t *testing.T) {
	payload := `{
		"title": "Ep 1",
		"mirror": {
			"m360p": [],
			"m720p": [{"nama": "ondesu", "content": "tok-a"}, {"nama": "mega", "content": "tok-b"}],
			"m480p": [{"nama": "vidhide", "content": "tok-c"}]
		},
		"download": {"d720p": [{"provider": "Mega", "link": "https://example.test/a"}]}
	}`

	var ep EpisodeDetail
	require.NoError(t, json.Unmarshal([]byte(payload), &ep))

	assert.Equal(t, []string{"m360p", "m720p", "m480p"}, ep.Mirrors.Labels())

	items, ok := ep.Mirrors.Find("m720p")
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "tok-b", items[1].Content)

	dl, ok := ep.Downloads.Find("d720p")
	require.True(t, ok)
	assert.Equal(t, "Mega", dl[0].Provider)
}

func TestGroupsNullAndMissing(t *testing.T) {
	var ep EpisodeDetail
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","mirror":null}`), &ep))
	assert.Empty(t, ep.Mirrors)
	assert.Empty(t, ep.Downloads)
}

func TestGroupsRejectArray(t *testing.T) {
	var g Groups[Mirror]
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &g))
}

func TestEpisodeNavigationSlugs(t *testing.T) {
	ep := EpisodeDetail{
		HasNextEpisode:     true,
		NextEpisode:        &SlugRef{Slug: "ep-2"},
		HasPreviousEpisode: false,
		PreviousEpisode:    &SlugRef{Slug: "ep-0"},
	}
	assert.Equal(t, "ep-2", ep.NextSlug())
	assert.Equal(t, "", ep.PreviousSlug())
}

func TestFormatTimeSortsLexically(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stamps := []string{
		FormatTime(base.Add(10 * time.Millisecond)),
		FormatTime(base.Add(1500 * time.Microsecond)),
		FormatTime(base),
	}
	sort.Strings(stamps)
	assert.Equal(t, FormatTime(base), stamps[0])

	parsed, err := ParseTime(stamps[2])
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base.Add(10*time.Millisecond)))
}
