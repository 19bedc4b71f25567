package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcgov/wildsync/ago"
)

// SafeName replaces characters that are invalid in file names with a dash.
func SafeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '-'
		}
		return r
	}, s)
}

// fileExt returns the extension without the leading dot, defaulting to jpg
// for names with no extension.
func fileExt(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "jpg"
	}
	return ext
}

// RenameSpec describes an attachment renaming pass over a layer or table.
type RenameSpec struct {
	Layer    *ago.FeatureLayer
	Features []ago.Feature

	// Prefix derives the renamed file's prefix from the owning feature.
	// Attachments already starting with the prefix are left alone.
	Prefix func(f ago.Feature) string

	// SkipPrefix, when set, replaces Prefix for the already-renamed
	// check. The field-status layers skip on the bare record id so that
	// photos renamed under an older naming scheme stay put.
	SkipPrefix func(f ago.Feature) string

	// PhotoNameField, when set, is updated on the feature with the
	// comma-joined renamed file names.
	PhotoNameField string
}

func (spec RenameSpec) skipPrefix(f ago.Feature, prefix string) string {
	if spec.SkipPrefix != nil {
		if s := spec.SkipPrefix(f); s != "" {
			return s
		}
	}
	return prefix
}

// RenameAttachments renames each feature's attachments to
// {prefix}_{counter}.{ext}. The attachment content is re-uploaded under the
// new name; when in-place update fails the attachment is re-added and the
// old one deleted.
func RenameAttachments(ctx context.Context, spec RenameSpec, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	tmpDir, err := os.MkdirTemp("", "attachments")
	if err != nil {
		return fmt.Errorf("create attachment workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var updates []ago.Feature

	for _, feature := range spec.Features {
		oid, ok := feature.ObjectID()
		if !ok {
			continue
		}

		prefix := spec.Prefix(feature)
		if prefix == "" {
			continue
		}
		skip := spec.skipPrefix(feature, prefix)

		attachments, err := spec.Layer.Attachments(ctx, oid)
		if err != nil {
			return fmt.Errorf("list attachments for %d: %w", oid, err)
		}
		if len(attachments) == 0 {
			continue
		}

		var renamed []string
		counter := 1

		for _, att := range attachments {
			if strings.HasPrefix(att.Name, skip) {
				continue
			}

			newName := fmt.Sprintf("%s_%d.%s", prefix, counter, fileExt(att.Name))
			counter++

			path, err := spec.Layer.DownloadAttachment(ctx, oid, att, tmpDir)
			if err != nil {
				return fmt.Errorf("download attachment %d of %d: %w", att.ID, oid, err)
			}

			newPath := filepath.Join(filepath.Dir(path), newName)
			if err := os.Rename(path, newPath); err != nil {
				return fmt.Errorf("rename %s: %w", path, err)
			}

			if err := spec.Layer.UpdateAttachment(ctx, oid, att.ID, newPath); err != nil {
				logger.Warn("Attachment update failed, re-adding", "oid", oid, "attachment", att.ID, "error", err)
				if err := spec.Layer.AddAttachment(ctx, oid, newPath); err != nil {
					return fmt.Errorf("re-add attachment for %d: %w", oid, err)
				}
				if err := spec.Layer.DeleteAttachment(ctx, oid, att.ID); err != nil {
					return fmt.Errorf("delete old attachment %d of %d: %w", att.ID, oid, err)
				}
			}

			renamed = append(renamed, newName)
			os.Remove(newPath)
		}

		if len(renamed) == 0 {
			continue
		}

		logger.Info("Renamed attachments", "oid", oid, "count", len(renamed))

		update := feature.Clone()
		if spec.PhotoNameField != "" {
			update.Attributes[spec.PhotoNameField] = strings.Join(renamed, ",")
		}
		updates = append(updates, update)
	}

	if len(updates) == 0 {
		return nil
	}

	results, err := spec.Layer.ApplyEdits(ctx, ago.Edits{Updates: updates})
	if err != nil {
		return fmt.Errorf("update features after rename: %w", err)
	}
	return results.Err()
}
