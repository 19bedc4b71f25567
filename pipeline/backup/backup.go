// Package backup archives the badger sightings layers to object storage and
// restores them from the most recent archive when the layer is lost.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
	"github.com/bcgov/wildsync/report"
)

// timestampFields are epoch-millisecond attributes converted to ISO 8601 in
// the archived GeoJSON so the backup stays readable outside AGO.
var timestampFields = []string{"survey_start", "survey_end", "CreationDate", "EditDate"}

// Backup archives sighting photos and writes dated GeoJSON snapshots of the
// raw and edited sightings layers, pruning snapshots past retention.
type Backup struct {
	deps pipeline.Deps
	now  func() time.Time
}

// NewBackup builds the badger-backup pipeline.
func NewBackup(deps pipeline.Deps) *Backup {
	return &Backup{deps: deps, now: time.Now}
}

func (p *Backup) Name() string { return "badger-backup" }

func (p *Backup) Description() string {
	return "Archive sighting photos and GeoJSON layer snapshots to object storage"
}

func (p *Backup) Run(ctx context.Context) error {
	cfg := p.deps.Config
	if cfg.AGO.Items.BadgerSightings == "" || cfg.AGO.Items.SightingsEditing == "" {
		return fmt.Errorf("badger sightings and editing item ids not configured")
	}

	rawLayer, rawSet, err := p.queryLayer(ctx, cfg.AGO.Items.BadgerSightings)
	if err != nil {
		return fmt.Errorf("raw sightings: %w", err)
	}
	_, editedSet, err := p.queryLayer(ctx, cfg.AGO.Items.SightingsEditing)
	if err != nil {
		return fmt.Errorf("edited sightings: %w", err)
	}

	uploaded, err := pipeline.ArchivePhotos(ctx, p.deps.Store, rawLayer, rawSet.Features,
		"photo_name", cfg.ObjectStore.PhotoPrefix, p.deps.Logger)
	if err != nil {
		return err
	}
	if uploaded > 0 {
		p.deps.Logger.Info("Archived new photos", "count", uploaded)
	}

	today := p.now().Format("2006-01-02")
	snapshots := []struct {
		name     string
		features []ago.Feature
	}{
		{fmt.Sprintf("survey123_raw_backup_data_%s.geojson", today), rawSet.Features},
		{fmt.Sprintf("survey123_edited_backup_data_%s.geojson", today), editedSet.Features},
	}

	for _, snap := range snapshots {
		if err := p.writeSnapshot(ctx, snap.name, snap.features); err != nil {
			return err
		}
	}

	pruned, err := p.deps.Store.Prune(ctx, cfg.ObjectStore.BackupPrefix,
		path.Join(cfg.ObjectStore.BackupPrefix, "*.geojson"),
		cfg.ObjectStore.BackupRetentionDays)
	if err != nil {
		return fmt.Errorf("prune old snapshots: %w", err)
	}
	if len(pruned) > 0 {
		p.deps.Logger.Info("Pruned expired snapshots", "count", len(pruned))
	}

	return nil
}

func (p *Backup) queryLayer(ctx context.Context, itemID string) (*ago.FeatureLayer, *ago.FeatureSet, error) {
	item, err := p.deps.AGO.Item(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve item %s: %w", itemID, err)
	}
	layer, err := item.Layer(ctx, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve layer: %w", err)
	}
	set, err := layer.Query(ctx, ago.QueryOptions{Where: "1=1"})
	if err != nil {
		return nil, nil, fmt.Errorf("query layer: %w", err)
	}
	return layer, set, nil
}

func (p *Backup) writeSnapshot(ctx context.Context, name string, features []ago.Feature) error {
	normalized := make([]ago.Feature, 0, len(features))
	for _, f := range features {
		normalized = append(normalized, normalizeTimestamps(f))
	}

	data, err := report.FeaturesToGeoJSON(normalized)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}

	objectName := path.Join(p.deps.Config.ObjectStore.BackupPrefix, name)
	if err := p.deps.Store.Upload(ctx, objectName, bytes.NewReader(data), int64(len(data)), "application/geo+json"); err != nil {
		return err
	}

	p.deps.Logger.Info("Wrote layer snapshot", "object", objectName, "features", len(features))
	return nil
}

// normalizeTimestamps rewrites known epoch-millisecond attributes as ISO
// 8601 strings.
func normalizeTimestamps(f ago.Feature) ago.Feature {
	out := f.Clone()
	for _, field := range timestampFields {
		if t, ok := f.Time(field); ok {
			out.Attributes[field] = t.Format(time.RFC3339)
		}
	}
	return out
}
