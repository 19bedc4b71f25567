package fieldstatus

import (
	"context"
	"fmt"
	"time"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
)

// resetAfterDays is how long after the last field visit the camera points
// are reset so the crew starts the next outing with a clean slate.
const resetAfterDays = 5

// CameraCheck maintains the wildlife camera layer: each camera point's
// completion flag follows its most recent check, and once a field outing has
// wrapped up every flag is reset to No for the next one.
type CameraCheck struct {
	deps pipeline.Deps
	now  func() time.Time
}

// NewCameraCheck builds the camera-check pipeline.
func NewCameraCheck(deps pipeline.Deps) *CameraCheck {
	return &CameraCheck{deps: deps, now: time.Now}
}

func (p *CameraCheck) Name() string { return "camera-check" }

func (p *CameraCheck) Description() string {
	return "Sync camera point completion flags with the latest camera checks"
}

func (p *CameraCheck) Run(ctx context.Context) error {
	itemID := p.deps.Config.AGO.Items.CameraCheck
	if itemID == "" {
		return fmt.Errorf("camera check item id not configured")
	}

	item, err := p.deps.AGO.Item(ctx, itemID)
	if err != nil {
		return fmt.Errorf("resolve camera check item: %w", err)
	}

	points, err := item.Layer(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve camera point layer: %w", err)
	}
	checks, err := item.Table(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve camera check table: %w", err)
	}

	pointSet, err := points.Query(ctx, ago.QueryOptions{Where: "1=1"})
	if err != nil {
		return fmt.Errorf("query camera points: %w", err)
	}
	checkSet, err := checks.Query(ctx, ago.QueryOptions{Where: "1=1", OmitGeometry: true})
	if err != nil {
		return fmt.Errorf("query camera checks: %w", err)
	}

	if shouldReset(checkSet.Features, p.now()) {
		p.deps.Logger.Info("Field outing complete, resetting camera completion flags", "points", len(pointSet.Features))
		return p.resetAll(ctx, points, pointSet.Features)
	}

	updates, err := carryLatest(ctx, pointSet.Features, carrySpec{
		keyField:  "PROJ_UNIQUE_ID",
		dateField: "DATETIME_ASSESSED",
		fields:    []string{"CHECK_COMPLETE"},
	}, byKeyQuery(checks, "PROJ_UNIQUE_ID"))
	if err != nil {
		return err
	}
	if len(updates) > 0 {
		p.deps.Logger.Info("Updating camera completion flags", "count", len(updates))
	}
	if err := applyUpdates(ctx, points, updates); err != nil {
		return fmt.Errorf("update camera points: %w", err)
	}
	return nil
}

// shouldReset reports whether the last check is more than resetAfterDays old
// and no check is still marked incomplete.
func shouldReset(checks []ago.Feature, now time.Time) bool {
	newest, ok := latest(checks, "DATETIME_ASSESSED")
	if !ok {
		return false
	}
	checkedAt, _ := newest.Time("DATETIME_ASSESSED")
	if now.Sub(checkedAt) <= resetAfterDays*24*time.Hour {
		return false
	}
	for _, check := range checks {
		if check.String("CHECK_COMPLETE") == "No" {
			return false
		}
	}
	return true
}

func (p *CameraCheck) resetAll(ctx context.Context, points *ago.FeatureLayer, features []ago.Feature) error {
	updates := make([]ago.Feature, 0, len(features))
	for _, f := range features {
		update := f.Clone()
		update.Attributes["CHECK_COMPLETE"] = "No"
		updates = append(updates, update)
	}
	if err := applyUpdates(ctx, points, updates); err != nil {
		return fmt.Errorf("reset camera points: %w", err)
	}
	return nil
}
