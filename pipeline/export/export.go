// Package export fulfils culvert data requests. Each pending request names
// an assessor and a date range; the pipeline gathers the matching culvert
// assessments, packages data files and photos into a zip archive in object
// storage and emails the requester a download link.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
	"github.com/bcgov/wildsync/report"
)

const (
	statusInProgress = "IN PROGRESS"
	statusComplete   = "COMPLETE"
	statusFailed     = "FAILED"

	pendingWhere = "submission_status = 'IN PROGRESS' OR submission_status = 'NOT STARTED' OR submission_status IS NULL OR submission_status = ''"

	exportPrefix = "passability_assessments"
	linkExpiry   = 7 * 24 * time.Hour
)

// errNoAssessments marks a request whose initials and date range matched
// nothing. The requester gets an explanatory email instead of a data link.
var errNoAssessments = errors.New("no culvert assessment data found")

// Export is the culvert-export pipeline.
type Export struct {
	deps pipeline.Deps
	now  func() time.Time
}

func NewExport(deps pipeline.Deps) *Export {
	return &Export{deps: deps, now: time.Now}
}

func (p *Export) Name() string { return "culvert-export" }

func (p *Export) Description() string {
	return "Package requested culvert assessment data and email the requester a download link"
}

func (p *Export) Run(ctx context.Context) error {
	items := p.deps.Config.AGO.Items

	requestItem, err := p.deps.AGO.Item(ctx, items.CulvertRequest)
	if err != nil {
		return fmt.Errorf("get data request item: %w", err)
	}
	requests, err := requestItem.Layer(ctx, 0)
	if err != nil {
		return fmt.Errorf("get data request layer: %w", err)
	}

	pending, err := requests.Query(ctx, ago.QueryOptions{Where: pendingWhere, OmitGeometry: true})
	if err != nil {
		return fmt.Errorf("query pending requests: %w", err)
	}
	if len(pending.Features) == 0 {
		p.deps.Logger.Info("No new data requests")
		return nil
	}
	p.deps.Logger.Info("New data requests detected", "count", len(pending.Features))

	loc, err := time.LoadLocation("US/Pacific")
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	var failed int
	for _, request := range pending.Features {
		guid := request.String("globalid")
		if guid == "" {
			continue
		}
		if err := p.process(ctx, requests, guid, loc); err != nil {
			p.deps.Logger.Error("Data request failed", "request", guid, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d data requests failed", failed, len(pending.Features))
	}
	return nil
}

// process handles a single data request end to end, updating its
// submission status as it goes.
func (p *Export) process(ctx context.Context, requests *ago.FeatureLayer, guid string, loc *time.Location) error {
	if err := p.setStatus(ctx, requests, guid, statusInProgress); err != nil {
		return err
	}

	request, err := p.requestByGUID(ctx, requests, guid)
	if err != nil {
		return err
	}

	email := request.String("email")
	initials := request.String("initials")
	start, okStart := request.Time("start_date")
	end, okEnd := request.Time("end_date")
	if initials == "" || !okStart || !okEnd {
		return fmt.Errorf("request %s is missing initials or date range", guid)
	}
	startDate := start.In(loc).Format("2006-01-02")
	endDate := end.In(loc).Format("2006-01-02")

	dataName := fmt.Sprintf("%s_%s", p.now().Format("2006-01-02"), initials)
	logger := p.deps.Logger.With("request", guid, "data_name", dataName)

	link, err := p.export(ctx, initials, start, end, loc, dataName, logger)
	if errors.Is(err, errNoAssessments) {
		reason := fmt.Sprintf("Did not find culvert assessment data associated with initials: %s for between %s and %s", initials, startDate, endDate)
		logger.Warn("No assessment data for request", "initials", initials, "start", startDate, "end", endDate)
		if mailErr := p.deps.Mailer.Send(ctx, requestErrorMessage(p.deps.Config.Mail.From, email, dataName, reason)); mailErr != nil {
			logger.Error("Failed to send request error email", "error", mailErr)
		}
		if statusErr := p.setStatus(ctx, requests, guid, statusFailed); statusErr != nil {
			return statusErr
		}
		return err
	}
	if err != nil {
		if statusErr := p.setStatus(ctx, requests, guid, statusFailed); statusErr != nil {
			logger.Error("Failed to mark request failed", "error", statusErr)
		}
		return err
	}

	if err := p.sendDownloadLink(ctx, email, link, dataName); err != nil {
		return err
	}
	return p.setStatus(ctx, requests, guid, statusComplete)
}

// export gathers the assessments, writes the data files and photos, and
// uploads the zipped package. It returns a presigned download link.
func (p *Export) export(ctx context.Context, initials string, start, end time.Time, loc *time.Location, dataName string, logger *slog.Logger) (string, error) {
	items := p.deps.Config.AGO.Items

	culvertItem, err := p.deps.AGO.Item(ctx, items.Culvert)
	if err != nil {
		return "", fmt.Errorf("get culvert item: %w", err)
	}
	_, err = culvertItem.Layer(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("get culvert location layer: %w", err)
	}
	assessments, err := culvertItem.Table(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("get culvert assessment table: %w", err)
	}

	where := fmt.Sprintf("UPPER(ASSESSOR_INITIALS) LIKE UPPER('%%%s%%')", initials)
	matched, err := assessments.Query(ctx, ago.QueryOptions{Where: where, OmitGeometry: true})
	if err != nil {
		return "", fmt.Errorf("query assessments: %w", err)
	}
	logger.Info("Queried assessments by initials", "count", len(matched.Features))

	inRange := filterByAssessedDate(matched.Features, start, end, loc)
	if len(inRange) == 0 {
		return "", errNoAssessments
	}
	logger.Info("Assessments within requested date range", "count", len(inRange))

	groups, err := assessments.QueryRelatedRecords(ctx, ago.FeatureSet{Features: inRange}.ObjectIDs(), 0)
	if err != nil {
		return "", fmt.Errorf("query related culvert locations: %w", err)
	}
	var locationFeatures []ago.Feature
	for _, group := range groups {
		locationFeatures = append(locationFeatures, group.RelatedRecords...)
	}

	tmpDir, err := os.MkdirTemp("", "culvert-export-")
	if err != nil {
		return "", fmt.Errorf("create working directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	projDir := filepath.Join(tmpDir, dataName)
	dataDir := filepath.Join(projDir, "data")
	photoDir := filepath.Join(projDir, "photos")
	for _, dir := range []string{dataDir, photoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}

	if err := writeDataFiles(dataDir, dataName, locationFeatures, inRange, loc); err != nil {
		return "", err
	}

	photos, err := p.downloadPhotos(ctx, assessments, inRange, photoDir)
	if err != nil {
		return "", err
	}
	logger.Info("Downloaded assessment photos", "count", photos)

	zipPath := filepath.Join(tmpDir, dataName+".zip")
	if err := report.ZipDirectory(projDir, zipPath); err != nil {
		return "", fmt.Errorf("zip project files: %w", err)
	}

	objectName := path.Join(exportPrefix, dataName+".zip")
	if err := p.deps.Store.UploadFile(ctx, objectName, zipPath, "application/zip"); err != nil {
		return "", fmt.Errorf("upload export package: %w", err)
	}
	logger.Info("Uploaded export package", "object", objectName)

	link, err := p.deps.Store.PresignedGet(ctx, objectName, linkExpiry)
	if err != nil {
		return "", fmt.Errorf("presign download link: %w", err)
	}
	return link, nil
}

// filterByAssessedDate keeps assessments whose DATE_ASSESSED falls on or
// between the start and end dates, compared as calendar days in loc.
func filterByAssessedDate(features []ago.Feature, start, end time.Time, loc *time.Location) []ago.Feature {
	startDay := dayOf(start, loc)
	endDay := dayOf(end, loc)

	var kept []ago.Feature
	for _, f := range features {
		assessed, ok := f.Time("DATE_ASSESSED")
		if !ok {
			continue
		}
		day := dayOf(assessed, loc)
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// writeDataFiles renders the export's data folder: per-layer CSVs, a KML of
// the culvert locations and a GeoJSON copy of the location features.
func writeDataFiles(dataDir, dataName string, locations, assessments []ago.Feature, loc *time.Location) error {
	base := fmt.Sprintf("culvert_assessment_data_%s", dataName)

	locationCSV := buildTable(locations, locationColumns, loc)
	if err := locationCSV.WriteCSVFile(filepath.Join(dataDir, base+"_culvert_location.csv")); err != nil {
		return fmt.Errorf("write location csv: %w", err)
	}

	assessmentCSV := buildTable(assessments, assessmentColumns, loc)
	if err := assessmentCSV.WriteCSVFile(filepath.Join(dataDir, base+"_culvert_assessment.csv")); err != nil {
		return fmt.Errorf("write assessment csv: %w", err)
	}

	if err := report.WriteKML(filepath.Join(dataDir, base+".kml"), placemarks(locations)); err != nil {
		return fmt.Errorf("write kml: %w", err)
	}

	geo, err := report.FeaturesToGeoJSON(locations)
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, base+".geojson"), geo, 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

func (p *Export) downloadPhotos(ctx context.Context, assessments *ago.FeatureLayer, features []ago.Feature, photoDir string) (int, error) {
	var downloaded int
	for _, f := range features {
		oid, ok := f.ObjectID()
		if !ok {
			continue
		}
		atts, err := assessments.Attachments(ctx, oid)
		if err != nil {
			return downloaded, fmt.Errorf("list attachments for %d: %w", oid, err)
		}
		for _, att := range atts {
			if _, err := assessments.DownloadAttachment(ctx, oid, att, photoDir); err != nil {
				return downloaded, fmt.Errorf("download attachment %s: %w", att.Name, err)
			}
			downloaded++
		}
	}
	return downloaded, nil
}

func (p *Export) sendDownloadLink(ctx context.Context, email, link, dataName string) error {
	mail := p.deps.Config.Mail
	if email == "" {
		reason := "There was an error sending the email to the Contractor. This may be because they entered their email or the project number incorrectly. Please investigate."
		return p.deps.Mailer.Send(ctx, adminErrorMessage(mail.From, mail.AdminAddress, dataName, reason))
	}
	return p.deps.Mailer.Send(ctx, downloadMessage(mail.From, email, link, dataName))
}

func (p *Export) setStatus(ctx context.Context, requests *ago.FeatureLayer, guid, status string) error {
	request, err := p.requestByGUID(ctx, requests, guid)
	if err != nil {
		return err
	}

	update := request.Clone()
	update.Attributes["submission_status"] = status
	results, err := requests.ApplyEdits(ctx, ago.Edits{Updates: []ago.Feature{update}})
	if err != nil {
		return fmt.Errorf("update request %s status: %w", guid, err)
	}
	if err := results.Err(); err != nil {
		return fmt.Errorf("update request %s status: %w", guid, err)
	}
	p.deps.Logger.Info("Updated request status", "request", guid, "status", status)
	return nil
}

func (p *Export) requestByGUID(ctx context.Context, requests *ago.FeatureLayer, guid string) (ago.Feature, error) {
	set, err := requests.Query(ctx, ago.QueryOptions{
		Where:        fmt.Sprintf("globalid = '%s'", guid),
		OmitGeometry: true,
	})
	if err != nil {
		return ago.Feature{}, fmt.Errorf("query request %s: %w", guid, err)
	}
	if len(set.Features) == 0 {
		return ago.Feature{}, fmt.Errorf("request %s not found", guid)
	}
	return set.Features[0], nil
}
