package sightings

import (
	"context"
	"fmt"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
)

// simpcwPhotoPrefix is where Simpcw Nation sighting photos are archived,
// separate from the main photo archive.
const simpcwPhotoPrefix = "Simpcw_Badger_Data/Simpcw_Badger_Photos"

// SimpcwPhotos archives photos from the Simpcw-filtered sightings layer into
// the Nation's own object storage folder.
type SimpcwPhotos struct {
	deps pipeline.Deps
}

// NewSimpcwPhotos builds the simpcw-photos pipeline.
func NewSimpcwPhotos(deps pipeline.Deps) *SimpcwPhotos {
	return &SimpcwPhotos{deps: deps}
}

func (p *SimpcwPhotos) Name() string { return "simpcw-photos" }

func (p *SimpcwPhotos) Description() string {
	return "Archive Simpcw sighting photos to the Nation's object storage folder"
}

func (p *SimpcwPhotos) Run(ctx context.Context) error {
	itemID := p.deps.Config.AGO.Items.SimpcwSightings
	if itemID == "" {
		return fmt.Errorf("simpcw sightings item id not configured")
	}

	item, err := p.deps.AGO.Item(ctx, itemID)
	if err != nil {
		return fmt.Errorf("resolve simpcw item: %w", err)
	}
	layer, err := item.Layer(ctx, 0)
	if err != nil {
		return fmt.Errorf("resolve simpcw layer: %w", err)
	}
	set, err := layer.Query(ctx, ago.QueryOptions{Where: "1=1"})
	if err != nil {
		return fmt.Errorf("query simpcw sightings: %w", err)
	}
	if len(set.Features) == 0 {
		p.deps.Logger.Info("No Simpcw sightings found")
		return nil
	}

	uploaded, err := pipeline.ArchivePhotos(ctx, p.deps.Store, layer, set.Features,
		"photo_name", simpcwPhotoPrefix, p.deps.Logger)
	if err != nil {
		return err
	}
	p.deps.Logger.Info("Archived Simpcw photos", "count", uploaded)
	return nil
}
