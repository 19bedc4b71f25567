package sightings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/chefs"
)

func submission(uid string, fields map[string]any) chefs.Submission {
	base := map[string]any{
		"unique_id":     uid,
		"sighting_type": "badger",
		"badger_status": "alive",
		"sighting_date": "2024-06-01",
		"latitude":      "50.7",
		"longitude":     "-120.5",
	}
	for k, v := range fields {
		base[k] = v
	}
	return chefs.Submission{
		ID:             "sub-" + uid,
		ConfirmationID: "CONF-" + uid,
		CreatedAt:      time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		Fields:         base,
	}
}

func TestBuildAttributes(t *testing.T) {
	sub := submission("abc", map[string]any{
		"ground_squirrels": "few_less_than_10",
		"point_accuracy":   "100m_exact",
		"image_permission": "",
		"obs_type": map[string]any{
			"visual sighting": true,
			"tracks":          true,
			"den or burrow":   false,
		},
		"additional_info": "seen at dusk",
	})

	attrs := buildAttributes(sub)

	assert.Equal(t, "Badger", attrs["sighting_type"])
	assert.Equal(t, "Alive", attrs["badger_status"])
	assert.Equal(t, "Few (<10)", attrs["ground_squirrels"])
	assert.Equal(t, "<100m (Exactly the spot)", attrs["point_accuracy"])
	assert.Nil(t, attrs["image_permission"])
	assert.Equal(t, "Tracks, Visual Sighting", attrs["obs_type"])
	assert.Equal(t, "seen at dusk", attrs["additional_info"])
	assert.Equal(t, "2024-06-01", attrs["sighting_date"])
	assert.Equal(t, "2024-06-01", attrs["sighting_date_response"])
	assert.Equal(t, "abc", attrs["unique_id"])
	assert.Equal(t, "CONF-abc", attrs["chefs_confirmation_id"])
	assert.Equal(t, 50.7, attrs["latitude"])
	assert.Equal(t, -120.5, attrs["longitude"])
}

func TestBuildAttributesUnknownCode(t *testing.T) {
	sub := submission("abc", map[string]any{"badger_status": "mostly_dead"})
	attrs := buildAttributes(sub)
	assert.Nil(t, attrs["badger_status"])
}

func TestParseSightingDate(t *testing.T) {
	for _, value := range []string{
		"2024-06-01",
		"2024-06-01T08:30:00Z",
		"2024-06-01T08:30:00.000Z",
	} {
		parsed, ok := parseSightingDate(value)
		require.True(t, ok, value)
		assert.Equal(t, "2024-06-01", parsed.Format("2006-01-02"))
	}

	_, ok := parseSightingDate("June 1st")
	assert.False(t, ok)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Visual Sighting", titleCase("visual sighting"))
	assert.Equal(t, "Den_Or_Burrow", titleCase("den_or_burrow"))
	assert.Equal(t, "Tracks", titleCase("TRACKS"))
}

func TestClassify(t *testing.T) {
	features := []ago.Feature{
		// photo record awaiting enrichment
		{Attributes: map[string]any{
			"objectid":   float64(1),
			"unique_id":  "photo-pending",
			"photo_name": "IMG_1.jpg",
		}},
		// already enriched
		{Attributes: map[string]any{
			"objectid":      float64(2),
			"unique_id":     "done",
			"photo_name":    "IMG_2.jpg",
			"sighting_type": "Badger",
		}},
		// matched record without photos, never updated
		{Attributes: map[string]any{
			"objectid":  float64(3),
			"unique_id": "no-photo",
		}},
	}

	subs := []chefs.Submission{
		submission("photo-pending", nil),
		submission("done", nil),
		submission("no-photo", nil),
		submission("form-only", nil),
		{Fields: map[string]any{"sighting_type": "badger"}}, // no unique id
	}

	adds, updates := classify(subs, features)

	require.Len(t, updates, 1)
	assert.Equal(t, "photo-pending", updates[0].String("unique_id"))
	assert.Equal(t, "Badger", updates[0].String("sighting_type"))
	assert.Equal(t, "CONF-photo-pending", updates[0].String("chefs_confirmation_id"))
	require.NotNil(t, updates[0].Geometry)
	assert.InDelta(t, -120.5, updates[0].Geometry.X, 1e-9)

	require.Len(t, adds, 1)
	assert.Equal(t, "form-only", adds[0].String("unique_id"))
}

func TestDuplicateOIDs(t *testing.T) {
	features := []ago.Feature{
		{Attributes: map[string]any{"objectid": float64(1), "unique_id": "a", "chefs_confirmation_id": "C1"}},
		// duplicate of a
		{Attributes: map[string]any{"objectid": float64(2), "unique_id": "a", "chefs_confirmation_id": "C1"}},
		// no unique id at all is left alone
		{Attributes: map[string]any{"objectid": float64(4)}},
	}

	deletes := duplicateOIDs(features)
	assert.ElementsMatch(t, []int64{2}, deletes)
}

func TestDuplicateOIDsKeepsPhotoRecordsAwaitingForms(t *testing.T) {
	features := []ago.Feature{
		// photo record whose form submission has not arrived yet
		{Attributes: map[string]any{"objectid": float64(42), "unique_id": "pending", "photo_name": "p.jpg"}},
		{Attributes: map[string]any{"objectid": float64(43), "unique_id": "done", "chefs_confirmation_id": "C9"}},
	}

	assert.Empty(t, duplicateOIDs(features))
}

func TestBuildReport(t *testing.T) {
	features := []ago.Feature{
		{Attributes: map[string]any{
			"unique_id":              "abc",
			"chefs_confirmation_id":  "CONF-abc",
			"sighting_type":          "Badger",
			"sighting_date_response": "2024-06-01",
			"photo_name":             "1_2024-06-01_1.jpg",
			"latitude":               50.7,
			"longitude":              -120.5,
		}},
		{Attributes: map[string]any{
			"unique_id": "unmatched",
		}},
	}
	subs := []chefs.Submission{
		submission("abc", map[string]any{
			"first_name": "Pat",
			"last_name":  "Doe",
			"email":      "pat@example.com",
		}),
	}

	table := buildReport(features, subs)

	require.Equal(t, len(reportColumns), len(table.Columns))
	assert.Equal(t, "Unique ID", table.Columns[0])
	require.Equal(t, 2, table.Len())

	assert.Equal(t, "abc", table.Rows[0]["Unique ID"])
	assert.Equal(t, "Pat", table.Rows[0]["First Name"])
	assert.Equal(t, "pat@example.com", table.Rows[0]["Email"])
	assert.Equal(t, "Badger", table.Rows[0]["Sighting Type"])
	assert.Equal(t, "1_2024-06-01_1.jpg", table.Rows[0]["Photo Name(s)"])

	// unmatched feature has no contact details
	assert.Nil(t, table.Rows[1]["First Name"])
}

func TestMissingOIDs(t *testing.T) {
	raw := []ago.Feature{
		{Attributes: map[string]any{"objectid": float64(1)}},
		{Attributes: map[string]any{"objectid": float64(2)}},
		{Attributes: map[string]any{"objectid": float64(3)}},
	}
	editing := []ago.Feature{
		{Attributes: map[string]any{"objectid": float64(10), "raw_flayer_oid": float64(1)}},
		{Attributes: map[string]any{"objectid": float64(11), "raw_flayer_oid": float64(3)}},
	}

	assert.Equal(t, []int64{2}, missingOIDs(raw, editing))
	assert.Empty(t, missingOIDs(nil, editing))
	assert.Equal(t, []int64{1, 2, 3}, missingOIDs(raw, nil))
}
