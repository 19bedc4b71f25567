package sightings

import (
	"context"
	"fmt"
	"time"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/chefs"
	"github.com/bcgov/wildsync/pipeline"
)

// Sync is the badger-sightings pipeline: it pulls form submissions from
// CHEFS, enriches the Survey123 photo records that share a unique id,
// uploads form-only submissions as new features, removes duplicates, renames
// photos, and publishes the season's spreadsheet reports.
type Sync struct {
	deps pipeline.Deps
	now  func() time.Time
}

// NewSync builds the badger-sightings pipeline.
func NewSync(deps pipeline.Deps) *Sync {
	return &Sync{deps: deps, now: time.Now}
}

func (p *Sync) Name() string { return "badger-sightings" }

func (p *Sync) Description() string {
	return "Merge CHEFS sighting submissions into the AGO layers and publish reports"
}

func (p *Sync) Run(ctx context.Context) error {
	cfg := p.deps.Config
	if cfg.AGO.Items.BadgerSightings == "" {
		return fmt.Errorf("badger sightings item id not configured")
	}

	subs, err := p.deps.CHEFS.Submissions(ctx)
	if err != nil {
		return fmt.Errorf("export form submissions: %w", err)
	}
	p.deps.Logger.Info("Exported form submissions", "count", len(subs))

	year := p.now().Year()
	where := fmt.Sprintf("CreationDate >= '%d-01-01' AND unique_id IS NOT NULL", year)

	layer, set, err := p.querySightings(ctx, cfg.AGO.Items.BadgerSightings, where)
	if err != nil {
		return err
	}

	adds, updates := classify(subs, set.Features)
	if len(adds) == 0 && len(updates) == 0 {
		p.deps.Logger.Info("No new submissions to sync")
	} else {
		p.deps.Logger.Info("Applying submission edits", "adds", len(adds), "updates", len(updates))
		results, err := layer.ApplyEdits(ctx, ago.Edits{Adds: adds, Updates: updates})
		if err != nil {
			return fmt.Errorf("apply submission edits: %w", err)
		}
		if err := results.Err(); err != nil {
			return fmt.Errorf("apply submission edits: %w", err)
		}
	}

	// re-query so cleanup and reporting see the merged data
	layer, set, err = p.querySightings(ctx, cfg.AGO.Items.BadgerSightings, where)
	if err != nil {
		return err
	}

	if err := p.removeDuplicates(ctx, layer, set.Features); err != nil {
		return err
	}

	if err := p.renamePhotos(ctx, layer, set.Features); err != nil {
		return err
	}

	if err := p.publishReports(ctx, set.Features, subs, year, where); err != nil {
		return err
	}

	return nil
}

func (p *Sync) querySightings(ctx context.Context, itemID, where string) (*ago.FeatureLayer, *ago.FeatureSet, error) {
	item, err := p.deps.AGO.Item(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve sightings item: %w", err)
	}
	layer, err := item.Layer(ctx, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve sightings layer: %w", err)
	}
	set, err := layer.Query(ctx, ago.QueryOptions{Where: where})
	if err != nil {
		return nil, nil, fmt.Errorf("query sightings: %w", err)
	}
	return layer, set, nil
}

// classify splits form submissions into feature adds and updates. A
// submission matching an existing Survey123 photo record that has not been
// enriched yet becomes an update; a submission with no matching feature
// becomes an add; everything else is already synced.
func classify(subs []chefs.Submission, features []ago.Feature) (adds, updates []ago.Feature) {
	byUniqueID := make(map[string]ago.Feature, len(features))
	for _, f := range features {
		if uid := f.String("unique_id"); uid != "" {
			byUniqueID[uid] = f
		}
	}

	for _, sub := range subs {
		uid := sub.String("unique_id")
		if uid == "" {
			continue
		}

		attrs := buildAttributes(sub)
		geometry := geometryFrom(sub)

		existing, matched := byUniqueID[uid]
		if matched {
			// already enriched, or a form-only duplicate of a record
			// without photos
			if !existing.IsNull("sighting_type") || existing.IsNull("photo_name") {
				continue
			}
			update := existing.Clone()
			for k, v := range attrs {
				update.Attributes[k] = v
			}
			if geometry != nil {
				update.Geometry = geometry
			}
			updates = append(updates, update)
			continue
		}

		adds = append(adds, ago.Feature{Attributes: attrs, Geometry: geometry})
	}

	return adds, updates
}

func geometryFrom(sub chefs.Submission) *ago.Point {
	lon, okLon := sub.Float("longitude")
	lat, okLat := sub.Float("latitude")
	if !okLon || !okLat {
		return nil
	}
	return &ago.Point{X: lon, Y: lat}
}

// removeDuplicates deletes features whose unique id repeats, keeping the
// first occurrence. A feature with a unique id but no confirmation id is a
// Survey123 photo record still waiting for its form submission and is never
// deleted.
func (p *Sync) removeDuplicates(ctx context.Context, layer *ago.FeatureLayer, features []ago.Feature) error {
	deletes := duplicateOIDs(features)
	if len(deletes) == 0 {
		return nil
	}

	p.deps.Logger.Info("Removing duplicate records", "count", len(deletes))
	results, err := layer.ApplyEdits(ctx, ago.Edits{Deletes: deletes})
	if err != nil {
		return fmt.Errorf("delete duplicate records: %w", err)
	}
	return results.Err()
}

func duplicateOIDs(features []ago.Feature) []int64 {
	seen := map[string]bool{}
	var deletes []int64

	for _, f := range features {
		oid, ok := f.ObjectID()
		if !ok {
			continue
		}
		uid := f.String("unique_id")
		if uid == "" {
			continue
		}
		if seen[uid] {
			deletes = append(deletes, oid)
			continue
		}
		seen[uid] = true
	}
	return deletes
}

// renamePhotos renames layer attachments to {oid}_{sighting date}_{n}.{ext}
// and records the new names on the photo_name field.
func (p *Sync) renamePhotos(ctx context.Context, layer *ago.FeatureLayer, features []ago.Feature) error {
	return pipeline.RenameAttachments(ctx, pipeline.RenameSpec{
		Layer:    layer,
		Features: features,
		Prefix: func(f ago.Feature) string {
			oid, ok := f.ObjectID()
			if !ok {
				return ""
			}
			date := pipeline.SafeName(f.String("sighting_date_response"))
			if date == "" {
				return ""
			}
			return fmt.Sprintf("%d_%s", oid, date)
		},
		PhotoNameField: "photo_name",
	}, p.deps.Logger)
}
