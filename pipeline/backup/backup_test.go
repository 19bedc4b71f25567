package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/report"
)

func TestNormalizeTimestamps(t *testing.T) {
	created := time.Date(2024, 6, 1, 15, 4, 5, 0, time.UTC)

	f := ago.Feature{
		Attributes: map[string]any{
			"unique_id":    "abc",
			"CreationDate": float64(created.UnixMilli()),
			"photo_name":   "1_2024-06-01_1.jpg",
		},
		Geometry: &ago.Point{X: -120.5, Y: 50.7},
	}

	out := normalizeTimestamps(f)

	assert.Equal(t, created.Format(time.RFC3339), out.Attributes["CreationDate"])
	assert.Equal(t, "1_2024-06-01_1.jpg", out.Attributes["photo_name"])

	// source feature keeps the epoch value
	assert.Equal(t, float64(created.UnixMilli()), f.Attributes["CreationDate"])
}

func TestNewestSnapshotName(t *testing.T) {
	names := []string{
		"backup_data/survey123_raw_backup_data_2024-05-01.geojson",
		"backup_data/survey123_edited_backup_data_2024-06-15.geojson",
		"backup_data/survey123_raw_backup_data_2024-06-01.geojson",
		"backup_data/notes.txt",
		"backup_data/undated.geojson",
	}

	newest, ok := newestSnapshotName(names)
	require.True(t, ok)
	assert.Equal(t, "backup_data/survey123_edited_backup_data_2024-06-15.geojson", newest)

	_, ok = newestSnapshotName([]string{"backup_data/notes.txt"})
	assert.False(t, ok)
}

func TestSnapshotRoundTrip(t *testing.T) {
	features := []ago.Feature{
		{
			Attributes: map[string]any{
				"unique_id":    "abc",
				"photo_name":   "1_2024-06-01_1.jpg",
				"CreationDate": float64(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()),
			},
			Geometry: &ago.Point{X: -120.5, Y: 50.7},
		},
	}

	normalized := make([]ago.Feature, 0, len(features))
	for _, f := range features {
		normalized = append(normalized, normalizeTimestamps(f))
	}

	data, err := report.FeaturesToGeoJSON(normalized)
	require.NoError(t, err)

	restored, err := report.GeoJSONToFeatures(data)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "abc", restored[0].Attributes["unique_id"])
	assert.Equal(t, "2024-06-01T00:00:00Z", restored[0].Attributes["CreationDate"])
	require.NotNil(t, restored[0].Geometry)
	assert.InDelta(t, -120.5, restored[0].Geometry.X, 1e-9)
}
