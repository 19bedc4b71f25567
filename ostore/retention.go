package ostore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ObjectDate extracts the first YYYY-MM-DD date embedded in an object name.
// Backup objects carry their creation date in the name, e.g.
// backup_data/survey123_raw_backup_data_2024-06-01.geojson.
func ObjectDate(name string) (time.Time, bool) {
	m := datePattern.FindString(name)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Expired returns the names matching the glob pattern whose embedded date is
// strictly older than retentionDays before now. Names without a parseable
// date are never selected.
func Expired(names []string, pattern string, retentionDays int, now time.Time) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid retention pattern %q", pattern)
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	var expired []string
	for _, name := range names {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("match %q against %q: %w", name, pattern, err)
		}
		if !ok {
			continue
		}
		date, found := ObjectDate(name)
		if !found {
			continue
		}
		if date.Before(cutoff) {
			expired = append(expired, name)
		}
	}
	return expired, nil
}

// Prune deletes objects under prefix that match pattern and are older than
// retentionDays. It returns the names it removed.
func (s *Store) Prune(ctx context.Context, prefix, pattern string, retentionDays int) ([]string, error) {
	names, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	expired, err := Expired(names, pattern, retentionDays, time.Now())
	if err != nil {
		return nil, err
	}

	for _, name := range expired {
		if err := s.Remove(ctx, name); err != nil {
			return nil, err
		}
		s.logger.Info("Pruned expired backup", "object", name)
	}
	return expired, nil
}
