// Package sightings syncs public badger sighting reports between the CHEFS
// form, the ArcGIS Online sighting layers, and the photo archive.
package sightings

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/bcgov/wildsync/chefs"
)

// carryFields are the CHEFS answer fields mirrored onto the sightings layer
// under the same attribute names.
var carryFields = []string{
	"sighting_type", "sighting_type_other", "number_badgers", "badger_status",
	"in_conflict", "road_location", "obs_type", "family_at_burrow",
	"location_type", "ground_squirrels", "additional_info", "image_permission",
	"latitude", "longitude", "point_accuracy", "referral_source",
	"social_media_source", "referral_source_other",
}

// codedValues translates CHEFS answer codes to the display values the layer
// domain expects. Codes without a mapping become null, matching the layer's
// coded value domains.
var codedValues = map[string]map[string]string{
	"sighting_type": {
		"badger":        "Badger",
		"badger_family": "Badger Family",
		"other":         "other",
	},
	"badger_status": {
		"alive":    "Alive",
		"dead":     "Dead",
		"not_sure": "Not Sure",
	},
	"in_conflict": {
		"yes": "Yes",
		"no":  "No",
	},
	"road_location": {
		"badger_road_crossing":  "Badger road crossing",
		"badger_road_mortality": "Badger road mortality",
		"other":                 "Other",
	},
	"location_type": {
		"public_land_or_park": "Public Land or Park",
		"private_property":    "Private Property",
		"highway_or_road":     "Highway or Road",
		"other":               "Other",
	},
	"ground_squirrels": {
		"none":             "None",
		"few_less_than_10": "Few (<10)",
		"many_10_to_20":    "Many (10-20)",
		"abundant_over_20": "Abundant (>20)",
		"unsure":           "Unsure",
	},
	"point_accuracy": {
		"100m_exact":        "<100m (Exactly the spot)",
		"1km_almost":        "<1km (Almost the spot)",
		"10km_general_area": "<10km (In the general area)",
	},
	"image_permission": {
		"yes": "Yes",
		"no":  "No",
	},
}

// sightingDateLayouts are the formats the form has emitted for the sighting
// date field.
var sightingDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
}

// parseSightingDate parses the form's sighting date answer.
func parseSightingDate(value string) (time.Time, bool) {
	for _, layout := range sightingDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatObsType flattens the form's observation checkbox group into the
// comma-separated title-cased list the layer stores.
func formatObsType(v any) string {
	checks, ok := v.(map[string]any)
	if !ok {
		return ""
	}

	var selected []string
	for key, val := range checks {
		if checked, ok := val.(bool); ok && checked {
			selected = append(selected, titleCase(key))
		}
	}
	// map iteration order is random; keep output stable
	sort.Strings(selected)
	return strings.Join(selected, ", ")
}

// titleCase capitalizes the first letter of each word, treating any
// non-letter as a separator.
func titleCase(s string) string {
	var b strings.Builder
	startOfWord := true
	for _, r := range s {
		if !unicode.IsLetter(r) {
			startOfWord = true
			b.WriteRune(r)
			continue
		}
		if startOfWord {
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// buildAttributes converts a CHEFS submission into the sighting layer's
// attribute values.
func buildAttributes(sub chefs.Submission) map[string]any {
	attrs := make(map[string]any, len(carryFields)+4)

	for _, field := range carryFields {
		value := sub.Fields[field]

		switch field {
		case "obs_type":
			attrs[field] = formatObsType(value)
			continue
		case "latitude", "longitude":
			if f, ok := sub.Float(field); ok {
				attrs[field] = f
			}
			continue
		}

		if mapping, coded := codedValues[field]; coded {
			code := sub.String(field)
			if code == "" {
				attrs[field] = nil
				continue
			}
			if display, known := mapping[code]; known {
				attrs[field] = display
			} else {
				attrs[field] = nil
			}
			continue
		}

		attrs[field] = value
	}

	if date, ok := parseSightingDate(sub.String("sighting_date")); ok {
		formatted := date.Format("2006-01-02")
		attrs["sighting_date"] = formatted
		attrs["sighting_date_response"] = formatted
	}

	if uid := sub.String("unique_id"); uid != "" {
		attrs["unique_id"] = uid
	}
	if sub.ConfirmationID != "" {
		attrs["chefs_confirmation_id"] = sub.ConfirmationID
	}

	return attrs
}
