package sightings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/chefs"
	"github.com/bcgov/wildsync/report"
)

// reportColumn pairs a source attribute with its spreadsheet header. Order
// here is the column order of the published report.
type reportColumn struct {
	field  string
	header string
}

// reportColumns lays out the sightings spreadsheet. The first few fields
// come from the CHEFS submission, the rest from the layer.
var reportColumns = []reportColumn{
	{"unique_id", "Unique ID"},
	{"chefs_confirmation_id", "CHEFS Confirmation ID"},
	{"first_name", "First Name"},
	{"last_name", "Last Name"},
	{"email", "Email"},
	{"sighting_date_response", "Sighting Date"},
	{"sighting_type", "Sighting Type"},
	{"sighting_type_other", "Sighting Type Other"},
	{"number_badgers", "How Many Badgers Did You See?"},
	{"badger_status", "Was the badger alive or dead?"},
	{"in_conflict", "Are you reporting a badger in conflict where public safety is at risk?"},
	{"road_location", "Are you reporting the location of:"},
	{"obs_type", "Types of Observations"},
	{"family_at_burrow", "Badger Location Type:"},
	{"location_type", "If you are reporting a badger family at a burrow, how many years have you seen them at this location?"},
	{"ground_squirrels", "Are there ground squirrels in this area?"},
	{"additional_info", "Describe the Badger Sighting:"},
	{"photo_name", "Photo Name(s)"},
	{"image_permission", "Would you like to give BC Badgers permission to use your photo(s) for program materials and this website?"},
	{"latitude", "Latitude"},
	{"longitude", "Longitude"},
	{"point_accuracy", "How accurate is the location on the map above?"},
	{"referral_source", "How did you hear about the provincial Report a Badger Sightings program?"},
	{"social_media_source", "Specify Social Media:"},
	{"referral_source_other", "Specify Other:"},
}

// contactFields are joined from the form submission rather than the layer.
var contactFields = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"email":      true,
}

// buildReport joins the layer features with submitter contact details and
// lays the result out in report order.
func buildReport(features []ago.Feature, subs []chefs.Submission) *report.Table {
	headers := make([]string, len(reportColumns))
	for i, col := range reportColumns {
		headers[i] = col.header
	}
	table := report.NewTable(headers...)

	contacts := make(map[string]chefs.Submission, len(subs))
	for _, sub := range subs {
		if uid := sub.String("unique_id"); uid != "" {
			contacts[uid] = sub
		}
	}

	for _, feature := range features {
		row := make(map[string]any, len(reportColumns))
		sub, hasContact := contacts[feature.String("unique_id")]

		for _, col := range reportColumns {
			if contactFields[col.field] {
				if hasContact {
					row[col.header] = sub.Fields[col.field]
				}
				continue
			}
			row[col.header] = feature.Attributes[col.field]
		}
		table.Append(row)
	}

	return table
}

// publishReports writes the season spreadsheets and uploads them to object
// storage: one for the full dataset and one for sightings on Simpcw land.
func (p *Sync) publishReports(ctx context.Context, features []ago.Feature, subs []chefs.Submission, year int, where string) error {
	tmpDir, err := os.MkdirTemp("", "sightings-report")
	if err != nil {
		return fmt.Errorf("create report workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := p.publishReport(ctx, tmpDir, buildReport(features, subs),
		fmt.Sprintf("badger_sightings_report_%d.xlsx", year), "badger_excel_report"); err != nil {
		return err
	}

	simpcwItemID := p.deps.Config.AGO.Items.SimpcwSightings
	if simpcwItemID == "" {
		p.deps.Logger.Info("Simpcw sightings item not configured, skipping report")
		return nil
	}

	_, simpcwSet, err := p.querySightings(ctx, simpcwItemID, where)
	if err != nil {
		return fmt.Errorf("simpcw sightings: %w", err)
	}
	if len(simpcwSet.Features) == 0 {
		p.deps.Logger.Info("No Simpcw sightings this season, skipping report")
		return nil
	}

	return p.publishReport(ctx, tmpDir, buildReport(simpcwSet.Features, subs),
		fmt.Sprintf("simpcw_badger_sightings_report_%d.xlsx", year),
		"simpcw_badger_data/simpcw_badger_excel_report")
}

func (p *Sync) publishReport(ctx context.Context, tmpDir string, table *report.Table, fileName, storePrefix string) error {
	localPath := filepath.Join(tmpDir, fileName)
	if err := table.WriteXLSX(localPath); err != nil {
		return fmt.Errorf("write report %s: %w", fileName, err)
	}

	objectName := storePrefix + "/" + fileName
	if err := p.deps.Store.UploadFile(ctx, objectName, localPath,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"); err != nil {
		return err
	}

	p.deps.Logger.Info("Published report", "object", objectName, "rows", table.Len())
	return nil
}
