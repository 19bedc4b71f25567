package sightings

import (
	"context"
	"fmt"
	"os"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
)

// EditingAppend copies features that exist in the raw sightings layer but
// not yet in the editing layer, carrying their photos along. The editing
// layer records the source object id in raw_flayer_oid.
type EditingAppend struct {
	deps pipeline.Deps
}

// NewEditingAppend builds the editing-append pipeline.
func NewEditingAppend(deps pipeline.Deps) *EditingAppend {
	return &EditingAppend{deps: deps}
}

func (p *EditingAppend) Name() string { return "editing-append" }

func (p *EditingAppend) Description() string {
	return "Append new raw sighting features and photos to the editing layer"
}

func (p *EditingAppend) Run(ctx context.Context) error {
	cfg := p.deps.Config
	if cfg.AGO.Items.SightingsRaw == "" || cfg.AGO.Items.SightingsEditing == "" {
		return fmt.Errorf("raw and editing sightings item ids not configured")
	}

	rawLayer, rawSet, err := p.layerData(ctx, cfg.AGO.Items.SightingsRaw)
	if err != nil {
		return fmt.Errorf("raw layer: %w", err)
	}
	editingLayer, editingSet, err := p.layerData(ctx, cfg.AGO.Items.SightingsEditing)
	if err != nil {
		return fmt.Errorf("editing layer: %w", err)
	}

	newOIDs := missingOIDs(rawSet.Features, editingSet.Features)
	if len(newOIDs) == 0 {
		p.deps.Logger.Info("No new features to append")
		return nil
	}
	p.deps.Logger.Info("Appending new features to editing layer", "count", len(newOIDs))

	for _, oid := range newOIDs {
		feature, ok := rawSet.FindByObjectID(oid)
		if !ok {
			continue
		}

		add := feature.Clone()
		add.Attributes["raw_flayer_oid"] = oid

		results, err := editingLayer.ApplyEdits(ctx, ago.Edits{Adds: []ago.Feature{add}})
		if err != nil {
			return fmt.Errorf("append feature %d: %w", oid, err)
		}
		if err := results.Err(); err != nil {
			return fmt.Errorf("append feature %d: %w", oid, err)
		}
		editingOID := results.AddResults[0].ObjectID

		if feature.IsNull("photo_name") {
			continue
		}
		if err := p.copyAttachments(ctx, rawLayer, editingLayer, oid, editingOID); err != nil {
			// drop the half-copied feature rather than leave it without
			// its photos
			if _, delErr := editingLayer.ApplyEdits(ctx, ago.Edits{Deletes: []int64{editingOID}}); delErr != nil {
				p.deps.Logger.Error("Failed to remove feature after attachment error", "oid", editingOID, "error", delErr)
			}
			return fmt.Errorf("copy attachments for %d: %w", oid, err)
		}
	}

	return nil
}

func (p *EditingAppend) layerData(ctx context.Context, itemID string) (*ago.FeatureLayer, *ago.FeatureSet, error) {
	item, err := p.deps.AGO.Item(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve item %s: %w", itemID, err)
	}
	layer, err := item.Layer(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	set, err := layer.Query(ctx, ago.QueryOptions{Where: "1=1"})
	if err != nil {
		return nil, nil, err
	}
	return layer, set, nil
}

// missingOIDs returns raw layer object ids not yet recorded in the editing
// layer's raw_flayer_oid field.
func missingOIDs(raw, editing []ago.Feature) []int64 {
	tracked := make(map[int64]bool, len(editing))
	for _, f := range editing {
		if oid, ok := f.Int64("raw_flayer_oid"); ok {
			tracked[oid] = true
		}
	}

	var missing []int64
	for _, f := range raw {
		if oid, ok := f.ObjectID(); ok && !tracked[oid] {
			missing = append(missing, oid)
		}
	}
	return missing
}

func (p *EditingAppend) copyAttachments(ctx context.Context, from, to *ago.FeatureLayer, fromOID, toOID int64) error {
	tmpDir, err := os.MkdirTemp("", "editing-append")
	if err != nil {
		return fmt.Errorf("create attachment workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	attachments, err := from.Attachments(ctx, fromOID)
	if err != nil {
		return err
	}

	for _, att := range attachments {
		localPath, err := from.DownloadAttachment(ctx, fromOID, att, tmpDir)
		if err != nil {
			return err
		}
		if err := to.AddAttachment(ctx, toOID, localPath); err != nil {
			return err
		}
		os.Remove(localPath)
	}
	return nil
}
