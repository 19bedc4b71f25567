package fieldstatus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/wildsync/ago"
)

func ms(t time.Time) float64 { return float64(t.UnixMilli()) }

func TestLatest(t *testing.T) {
	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	features := []ago.Feature{
		{Attributes: map[string]any{"START_DATE": ms(older), "SITE_STATUS": "Active"}},
		{Attributes: map[string]any{"START_DATE": ms(newer), "SITE_STATUS": "Removed"}},
		{Attributes: map[string]any{"SITE_STATUS": "NoDate"}},
	}

	newest, ok := latest(features, "START_DATE")
	require.True(t, ok)
	assert.Equal(t, "Removed", newest.String("SITE_STATUS"))

	_, ok = latest(nil, "START_DATE")
	assert.False(t, ok)

	_, ok = latest([]ago.Feature{{Attributes: map[string]any{}}}, "START_DATE")
	assert.False(t, ok)
}

func TestCarryLatest(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	parents := []ago.Feature{
		{Attributes: map[string]any{"objectid": float64(1), "SITE_ID": "S-1", "SITE_STATUS": "Active"}},
		{Attributes: map[string]any{"objectid": float64(2), "SITE_ID": "S-2", "SITE_STATUS": "Active"}},
		{Attributes: map[string]any{"objectid": float64(3), "SITE_ID": "S-3", "SITE_STATUS": "Active"}},
		{Attributes: map[string]any{"objectid": float64(4)}},
	}

	checksBySite := map[string][]ago.Feature{
		// newest check disagrees, parent should update
		"S-1": {
			{Attributes: map[string]any{"START_DATE": ms(now.AddDate(0, 0, -10)), "SITE_STATUS": "Active"}},
			{Attributes: map[string]any{"START_DATE": ms(now), "SITE_STATUS": "Removed"}},
		},
		// newest check agrees, no update
		"S-2": {
			{Attributes: map[string]any{"START_DATE": ms(now), "SITE_STATUS": "Active"}},
		},
		// no checks at all, skipped
		"S-3": {},
	}

	updates, err := carryLatest(context.Background(), parents, carrySpec{
		keyField:  "SITE_ID",
		dateField: "START_DATE",
		fields:    []string{"SITE_STATUS"},
	}, func(ctx context.Context, key string) ([]ago.Feature, error) {
		return checksBySite[key], nil
	})
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, "S-1", updates[0].String("SITE_ID"))
	assert.Equal(t, "Removed", updates[0].String("SITE_STATUS"))

	// parent feature itself is untouched
	assert.Equal(t, "Active", parents[0].String("SITE_STATUS"))
}

func TestRenameSpecPrefixes(t *testing.T) {
	spec := renameSpec(nil, nil, "SITE_ID", "PHOTO_NAME")

	f := ago.Feature{Attributes: map[string]any{"SITE_ID": "C001"}}
	assert.Equal(t, "C001_photo", spec.Prefix(f))
	// a photo renamed under any scheme starting with the id is left alone
	assert.Equal(t, "C001", spec.SkipPrefix(f))

	blank := ago.Feature{Attributes: map[string]any{}}
	assert.Equal(t, "", spec.Prefix(blank))
}

func TestShouldReset(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -2)
	stale := now.AddDate(0, 0, -7)

	check := func(at time.Time, complete string) ago.Feature {
		return ago.Feature{Attributes: map[string]any{
			"DATETIME_ASSESSED": ms(at),
			"CHECK_COMPLETE":    complete,
		}}
	}

	tests := []struct {
		name   string
		checks []ago.Feature
		want   bool
	}{
		{
			name:   "outing finished long enough ago",
			checks: []ago.Feature{check(stale, "Yes"), check(stale.AddDate(0, 0, -1), "Yes")},
			want:   true,
		},
		{
			name:   "recent activity",
			checks: []ago.Feature{check(recent, "Yes")},
			want:   false,
		},
		{
			name:   "incomplete checks remain",
			checks: []ago.Feature{check(stale, "Yes"), check(stale, "No")},
			want:   false,
		},
		{
			name: "no checks",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldReset(tt.checks, now))
		})
	}
}
