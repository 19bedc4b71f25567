// Package fieldstatus keeps Field Maps point layers in sync with their
// related inspection tables: the point's status fields are carried forward
// from the most recent related record, and field photos are renamed to a
// stable site-based naming scheme.
package fieldstatus

import (
	"context"
	"fmt"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/pipeline"
)

// latest returns the feature with the greatest value in dateField.
func latest(features []ago.Feature, dateField string) (ago.Feature, bool) {
	var (
		best  ago.Feature
		found bool
	)
	for _, f := range features {
		t, ok := f.Time(dateField)
		if !ok {
			continue
		}
		if !found {
			best = f
			found = true
			continue
		}
		if bt, _ := best.Time(dateField); t.After(bt) {
			best = f
		}
	}
	return best, found
}

// carrySpec describes one status carry-over from a related table to its
// parent point layer.
type carrySpec struct {
	// keyField joins parent features to their related records.
	keyField string
	// dateField orders related records; the newest wins.
	dateField string
	// fields are copied from the newest related record when they differ.
	fields []string
}

// carryLatest builds the parent feature updates for a carry-over pass. The
// query function returns the related records for one parent key.
func carryLatest(ctx context.Context, parents []ago.Feature, spec carrySpec,
	related func(ctx context.Context, key string) ([]ago.Feature, error)) ([]ago.Feature, error) {

	var updates []ago.Feature

	for _, parent := range parents {
		key := parent.String(spec.keyField)
		if key == "" {
			continue
		}

		records, err := related(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("related records for %s=%s: %w", spec.keyField, key, err)
		}

		newest, ok := latest(records, spec.dateField)
		if !ok {
			continue
		}

		update := parent
		changed := false
		for _, field := range spec.fields {
			current := parent.Attributes[field]
			value := newest.Attributes[field]
			if parent.IsNull(field) || current != value {
				if !changed {
					update = parent.Clone()
					changed = true
				}
				update.Attributes[field] = value
			}
		}
		if changed {
			updates = append(updates, update)
		}
	}

	return updates, nil
}

// applyUpdates pushes staged feature updates, skipping the call when there
// is nothing to change.
func applyUpdates(ctx context.Context, layer *ago.FeatureLayer, updates []ago.Feature) error {
	if len(updates) == 0 {
		return nil
	}
	results, err := layer.ApplyEdits(ctx, ago.Edits{Updates: updates})
	if err != nil {
		return err
	}
	return results.Err()
}

// byKeyQuery returns a related-record lookup that queries the table with
// {keyField} = '{key}'.
func byKeyQuery(table *ago.FeatureLayer, keyField string) func(ctx context.Context, key string) ([]ago.Feature, error) {
	return func(ctx context.Context, key string) ([]ago.Feature, error) {
		fs, err := table.Query(ctx, ago.QueryOptions{
			Where:        fmt.Sprintf("%s = '%s'", keyField, key),
			OmitGeometry: true,
		})
		if err != nil {
			return nil, err
		}
		return fs.Features, nil
	}
}

// renamePass renames a layer's attachments to {id}_photo_{n}.{ext} using the
// given feature attribute as the id. Any attachment already starting with
// the id is treated as renamed, whatever suffix scheme it was given.
func renamePass(ctx context.Context, deps pipeline.Deps, layer *ago.FeatureLayer, features []ago.Feature, idField, photoNameField string) error {
	return pipeline.RenameAttachments(ctx, renameSpec(layer, features, idField, photoNameField), deps.Logger)
}

func renameSpec(layer *ago.FeatureLayer, features []ago.Feature, idField, photoNameField string) pipeline.RenameSpec {
	return pipeline.RenameSpec{
		Layer:    layer,
		Features: features,
		Prefix: func(f ago.Feature) string {
			id := f.String(idField)
			if id == "" {
				return ""
			}
			return id + "_photo"
		},
		SkipPrefix: func(f ago.Feature) string {
			return f.String(idField)
		},
		PhotoNameField: photoNameField,
	}
}
