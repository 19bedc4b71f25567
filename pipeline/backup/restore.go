package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/ostore"
	"github.com/bcgov/wildsync/pipeline"
	"github.com/bcgov/wildsync/report"
)

// Restore truncates the editing layer and reloads it from the most recent
// GeoJSON snapshot, re-attaching archived photos. It refuses to run unless
// explicitly confirmed.
type Restore struct {
	deps      pipeline.Deps
	confirmed bool
}

// NewRestore builds the badger-restore pipeline. The pipeline only proceeds
// when confirmed is true; otherwise Run reports what it would do and fails.
func NewRestore(deps pipeline.Deps, confirmed bool) *Restore {
	return &Restore{deps: deps, confirmed: confirmed}
}

func (p *Restore) Name() string { return "badger-restore" }

func (p *Restore) Description() string {
	return "Replace the editing layer with the most recent object storage snapshot"
}

func (p *Restore) Run(ctx context.Context) error {
	cfg := p.deps.Config
	if cfg.AGO.Items.SightingsEditing == "" {
		return fmt.Errorf("sightings editing item id not configured")
	}

	snapshot, err := latestSnapshot(ctx, p.deps.Store, cfg.ObjectStore.BackupPrefix)
	if err != nil {
		return err
	}

	if !p.confirmed {
		return fmt.Errorf("restore would truncate the editing layer and reload %s; re-run with --confirm", snapshot)
	}

	p.deps.Logger.Warn("Restoring editing layer from snapshot", "snapshot", snapshot)

	features, err := p.loadSnapshot(ctx, snapshot)
	if err != nil {
		return err
	}

	item, err := p.deps.AGO.Item(ctx, cfg.AGO.Items.SightingsEditing)
	if err != nil {
		return fmt.Errorf("resolve editing item: %w", err)
	}
	layer, err := item.Layer(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve editing layer: %w", err)
	}

	if err := layer.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate editing layer: %w", err)
	}

	for i, feature := range features {
		results, err := layer.ApplyEdits(ctx, ago.Edits{Adds: []ago.Feature{feature}})
		if err != nil {
			return fmt.Errorf("restore feature %d: %w", i, err)
		}
		if err := results.Err(); err != nil {
			return fmt.Errorf("restore feature %d: %w", i, err)
		}

		photoNames := feature.String("photo_name")
		if photoNames == "" {
			continue
		}
		oid := results.AddResults[0].ObjectID
		if err := p.reattachPhotos(ctx, layer, oid, photoNames); err != nil {
			return err
		}
	}

	p.deps.Logger.Info("Restore complete", "features", len(features))
	return nil
}

// latestSnapshot finds the newest GeoJSON snapshot under prefix by the date
// embedded in its name.
func latestSnapshot(ctx context.Context, store *ostore.Store, prefix string) (string, error) {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}

	newest, ok := newestSnapshotName(names)
	if !ok {
		return "", fmt.Errorf("no snapshots found under %s", prefix)
	}
	return newest, nil
}

// newestSnapshotName picks the GeoJSON object with the most recent embedded
// date.
func newestSnapshotName(names []string) (string, bool) {
	var (
		newest string
		found  bool
	)
	for _, name := range names {
		if !strings.HasSuffix(strings.ToLower(name), ".geojson") {
			continue
		}
		date, ok := ostore.ObjectDate(name)
		if !ok {
			continue
		}
		if !found {
			newest = name
			found = true
			continue
		}
		if best, _ := ostore.ObjectDate(newest); date.After(best) {
			newest = name
		}
	}
	return newest, found
}

func (p *Restore) loadSnapshot(ctx context.Context, objectName string) ([]ago.Feature, error) {
	r, err := p.deps.Store.Get(ctx, objectName)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", objectName, err)
	}

	features, err := report.GeoJSONToFeatures(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", objectName, err)
	}
	return features, nil
}

func (p *Restore) reattachPhotos(ctx context.Context, layer *ago.FeatureLayer, oid int64, photoNames string) error {
	tmpDir, err := os.MkdirTemp("", "restore-photos")
	if err != nil {
		return fmt.Errorf("create photo workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	photoPrefix := p.deps.Config.ObjectStore.PhotoPrefix

	for _, name := range strings.Split(photoNames, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		localPath := filepath.Join(tmpDir, name)
		if err := p.deps.Store.DownloadFile(ctx, path.Join(photoPrefix, name), localPath); err != nil {
			p.deps.Logger.Warn("Archived photo missing, skipping", "photo", name, "error", err)
			continue
		}

		if err := layer.AddAttachment(ctx, oid, localPath); err != nil {
			return fmt.Errorf("attach %s to %d: %w", name, oid, err)
		}
	}
	return nil
}
