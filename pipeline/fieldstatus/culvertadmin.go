package fieldstatus

import (
	"context"
	"fmt"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
)

// culvertCarryFields are copied from the newest assessment onto the culvert
// location so map symbology reflects the latest field visit.
var culvertCarryFields = []string{"MACHINE_EXCAV_REQ", "UNDERPASS_PRIORITY", "LANDSCAPE_CONNECT"}

// CulvertAdmin maintains the culvert passability layer: carries assessment
// results onto culvert locations and renames field photos.
type CulvertAdmin struct {
	deps pipeline.Deps
}

// NewCulvertAdmin builds the culvert-admin pipeline.
func NewCulvertAdmin(deps pipeline.Deps) *CulvertAdmin {
	return &CulvertAdmin{deps: deps}
}

func (p *CulvertAdmin) Name() string { return "culvert-admin" }

func (p *CulvertAdmin) Description() string {
	return "Sync culvert locations with their latest assessment and rename photos"
}

func (p *CulvertAdmin) Run(ctx context.Context) error {
	itemID := p.deps.Config.AGO.Items.Culvert
	if itemID == "" {
		return fmt.Errorf("culvert item id not configured")
	}

	item, err := p.deps.AGO.Item(ctx, itemID)
	if err != nil {
		return fmt.Errorf("resolve culvert item: %w", err)
	}

	locations, err := item.Layer(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve culvert location layer: %w", err)
	}
	assessments, err := item.Table(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve culvert assessment table: %w", err)
	}

	locationSet, err := locations.Query(ctx, ago.QueryOptions{Where: "1=1"})
	if err != nil {
		return fmt.Errorf("query culvert locations: %w", err)
	}
	assessmentSet, err := assessments.Query(ctx, ago.QueryOptions{Where: "1=1", OmitGeometry: true})
	if err != nil {
		return fmt.Errorf("query culvert assessments: %w", err)
	}

	p.deps.Logger.Info("Loaded culvert data",
		"locations", len(locationSet.Features),
		"assessments", len(assessmentSet.Features))

	updates, err := p.carryAssessments(ctx, locations, locationSet.Features)
	if err != nil {
		return err
	}
	if len(updates) > 0 {
		p.deps.Logger.Info("Carrying latest assessment values onto culvert locations", "count", len(updates))
	}
	if err := applyUpdates(ctx, locations, updates); err != nil {
		return fmt.Errorf("update culvert locations: %w", err)
	}

	if err := renamePass(ctx, p.deps, locations, locationSet.Features, "SITE_ID", "PHOTO_NAME"); err != nil {
		return fmt.Errorf("rename culvert location photos: %w", err)
	}
	if err := renamePass(ctx, p.deps, assessments, assessmentSet.Features, "SITE_ASSESS_ID", "PHOTO_NAME"); err != nil {
		return fmt.Errorf("rename culvert assessment photos: %w", err)
	}

	return nil
}

// carryAssessments walks the relationship from each location to its
// assessments and stages an update when the newest assessment disagrees with
// the location.
func (p *CulvertAdmin) carryAssessments(ctx context.Context, locations *ago.FeatureLayer, features []ago.Feature) ([]ago.Feature, error) {
	var updates []ago.Feature

	for _, loc := range features {
		oid, ok := loc.ObjectID()
		if !ok {
			continue
		}

		groups, err := locations.QueryRelatedRecords(ctx, []int64{oid}, 0)
		if err != nil {
			return nil, fmt.Errorf("related assessments for location %d: %w", oid, err)
		}

		var records []ago.Feature
		for _, group := range groups {
			records = append(records, group.RelatedRecords...)
		}

		newest, found := latest(records, "DATE_ASSESSED")
		if !found {
			continue
		}

		update := loc
		changed := false
		for _, field := range culvertCarryFields {
			if loc.IsNull(field) || loc.Attributes[field] != newest.Attributes[field] {
				if !changed {
					update = loc.Clone()
					changed = true
				}
				update.Attributes[field] = newest.Attributes[field]
			}
		}
		if changed {
			updates = append(updates, update)
		}
	}

	return updates, nil
}
