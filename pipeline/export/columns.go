package export

import (
	"fmt"
	"time"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/report"
)

type exportColumn struct {
	field  string
	header string
}

// locationColumns maps culvert location fields to spreadsheet headers.
// Administrative and internal tracking fields are deliberately absent.
var locationColumns = []exportColumn{
	{"SITE_ID", "Culvert Location ID"},
	{"RECORD_CHRIS_ID", "Record CHRIS ID?"},
	{"CHRIS_ID", "CHRIS Culvert ID"},
	{"RECORD_BMIS_ID", "Record BMIS ID?"},
	{"BMIS_ID", "BMIS ID"},
	{"RECORD_RAIL_ID", "Record Rail ID?"},
	{"RAIL_ID", "RAIL ID"},
	{"ASSESSOR_INITIALS", "Assessor Initials(s)"},
	{"DATE_TIME_CREATED", "Date and Time"},
	{"TRAFFIC_DIRECTION", "Highway Traffic Direction"},
	{"CARDINAL_DIRECTION", "Cardinal Direction"},
	{"LATITUDE", "Latitude"},
	{"LONGITUDE", "Longitude"},
	{"PHOTO_NAME", "Photo Name(s)"},
	{"FLAG_CULVERT_DISCREPANCY", "Flag CHRIS Discrepancy"},
	{"CHRIS_CULVERT_MISSING", "Culvert Missing In CHRIS"},
	{"FIELD_CULVERT_MISSING", "Culvert Missing In The Field"},
	{"SUSPECTED_CHRIS_ID", "Suspected CHRIS ID"},
	{"COMMENTS", "Comments"},
	{"STATUS", "Status"},
	{"DELETE_POINT", "Delete Point"},
}

// assessmentColumns maps culvert assessment fields to spreadsheet headers.
var assessmentColumns = []exportColumn{
	{"SITE_ID", "Culvert Location ID"},
	{"SITE_ASSESS_ID", "Culvert Assessment ID"},
	{"ASSESSOR_INITIALS", "Assessor Name(s)"},
	{"DATE_ASSESSED", "Date"},
	{"RECORD_CHRIS_ID", "Record CHRIS ID?"},
	{"CHRIS_ID", "CHRIS ID"},
	{"SPECIES_GUILD", "Species Guild"},
	{"STRUCTURE_TYPE", "Structure Type"},
	{"STRUCTURE_SIZE_CM", "Structure Size (cm)"},
	{"STRUCTURE_SIZE_MM", "Structure Size (mm)"},
	{"MAIN_FUNCTION", "Main Function"},
	{"SECONDARY_FUNCTION", "Secondary Function(s)"},
	{"STRUCTURE_FUNCTIONAL", "Functional"},
	{"LANDSCAPE_CONNECT", "Local Landscape Connectivity"},
	{"RIPARIAN_CORRIDOR", "Riparian Corridor"},
	{"RAIL_COUPLING", "Rail Coupling Nearby"},
	{"SEASONAL_FLOW", "Seasonal Flow"},
	{"GRATE", "Grate"},
	{"PASSABLE", "Passable"},
	{"OPENNESS", "Openness (%)"},
	{"UNDERPASS_VISIBILITY", "Visibility Through Underpass"},
	{"MOISTURE", "Moisture"},
	{"WATER_DEPTH", "Water Depth (cm)"},
	{"TRACKS_SIGNS", "Tracks & Sign"},
	{"TRACKS_SIGNS_DESCRIBE", "Describe Tracks & Sign"},
	{"HAND_EXCAV_REQ", "Hand Excavation Required"},
	{"MACHINE_EXCAV_REQ", "Machine Excavation Required"},
	{"CAMERA_INSTALL", "Camera Installation Possible"},
	{"CAMERA_THEFT", "Camera Theft Potential"},
	{"CAMERA_SUITABILITY", "Overall Camera Suitability"},
	{"UNDERPASS_PRIORITY", "Potential Underpass Priority"},
	{"PHOTO_NAME", "Photo Name(s)"},
	{"COMMENTS", "Comments"},
}

// timestampColumns are epoch-millisecond fields rendered as local times in
// the export files.
var timestampColumns = map[string]string{
	"DATE_TIME_CREATED": "2006-01-02 15:04:05",
	"DATE_ASSESSED":     "2006-01-02",
}

func buildTable(features []ago.Feature, columns []exportColumn, loc *time.Location) *report.Table {
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	table := report.NewTable(headers...)

	for _, feature := range features {
		row := make(map[string]any, len(columns))
		for _, col := range columns {
			if layout, isTimestamp := timestampColumns[col.field]; isTimestamp {
				if t, ok := feature.Time(col.field); ok {
					row[col.header] = t.In(loc).Format(layout)
				}
				continue
			}
			row[col.header] = feature.Attributes[col.field]
		}
		table.Append(row)
	}
	return table
}

// placemarks builds KML points from the recorded coordinates of each
// culvert location, named by object id.
func placemarks(locations []ago.Feature) []report.Placemark {
	var marks []report.Placemark
	for _, f := range locations {
		oid, ok := f.ObjectID()
		if !ok {
			continue
		}
		lon, okLon := floatAttr(f, "LONGITUDE")
		lat, okLat := floatAttr(f, "LATITUDE")
		if !okLon || !okLat {
			continue
		}
		marks = append(marks, report.Placemark{
			Name: fmt.Sprintf("%d", oid),
			Lon:  lon,
			Lat:  lat,
		})
	}
	return marks
}

func floatAttr(f ago.Feature, key string) (float64, bool) {
	v, ok := f.Attributes[key].(float64)
	return v, ok
}
