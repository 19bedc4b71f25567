package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/bcgov/wildsync/ago"
	"github.com/bcgov/wildsync/ostore"
)

// ArchivePhotos copies feature attachments to object storage under prefix,
// skipping photos whose names are already archived. The photoField attribute
// holds the comma-joined attachment names a feature expects.
func ArchivePhotos(ctx context.Context, store *ostore.Store, layer *ago.FeatureLayer, features []ago.Feature, photoField, prefix string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	archived, err := store.ListBaseNames(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list archived photos: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "photo-archive")
	if err != nil {
		return 0, fmt.Errorf("create photo workspace: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var uploaded int
	for _, feature := range features {
		oid, ok := feature.ObjectID()
		if !ok {
			continue
		}

		wanted := map[string]bool{}
		for _, name := range strings.Split(feature.String(photoField), ",") {
			name = strings.TrimSpace(name)
			if name != "" && !archived[name] {
				wanted[name] = true
			}
		}
		if len(wanted) == 0 {
			continue
		}

		attachments, err := layer.Attachments(ctx, oid)
		if err != nil {
			return uploaded, fmt.Errorf("list attachments for %d: %w", oid, err)
		}

		for _, att := range attachments {
			if !wanted[att.Name] {
				continue
			}
			localPath, err := layer.DownloadAttachment(ctx, oid, att, tmpDir)
			if err != nil {
				return uploaded, fmt.Errorf("download photo %s: %w", att.Name, err)
			}
			objectName := path.Join(prefix, att.Name)
			if err := store.UploadFile(ctx, objectName, localPath, att.ContentType); err != nil {
				return uploaded, err
			}
			logger.Debug("Archived photo", "object", objectName)
			os.Remove(localPath)
			uploaded++
		}
	}

	return uploaded, nil
}
