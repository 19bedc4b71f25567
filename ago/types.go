package ago

import (
	"fmt"
	"time"
)

// Point is a point geometry in the layer's spatial reference.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Feature is a single feature layer record: a free-form attribute map and an
// optional point geometry.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Point         `json:"geometry,omitempty"`
}

// Clone returns a deep copy of the feature so callers can stage edits
// without mutating query results.
func (f Feature) Clone() Feature {
	attrs := make(map[string]any, len(f.Attributes))
	for k, v := range f.Attributes {
		attrs[k] = v
	}
	clone := Feature{Attributes: attrs}
	if f.Geometry != nil {
		g := *f.Geometry
		clone.Geometry = &g
	}
	return clone
}

// String returns the named attribute as a string. Missing or nil attributes
// return "".
func (f Feature) String(key string) string {
	v, ok := f.Attributes[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Int64 returns the named attribute as an int64. JSON numbers decode as
// float64, so both are accepted.
func (f Feature) Int64(key string) (int64, bool) {
	switch v := f.Attributes[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// ObjectID returns the feature's object id, trying the common field names.
func (f Feature) ObjectID() (int64, bool) {
	for _, key := range []string{"objectid", "OBJECTID", "ObjectId"} {
		if oid, ok := f.Int64(key); ok {
			return oid, true
		}
	}
	return 0, false
}

// Time interprets the named attribute as an epoch-millisecond timestamp, the
// encoding AGO uses for date fields.
func (f Feature) Time(key string) (time.Time, bool) {
	ms, ok := f.Int64(key)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// IsNull reports whether the named attribute is absent, nil, or an empty
// string.
func (f Feature) IsNull(key string) bool {
	v, ok := f.Attributes[key]
	if !ok || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// FeatureSet is the result of a layer or table query.
type FeatureSet struct {
	Features []Feature `json:"features"`
}

// ObjectIDs returns the object ids of all features in query order.
func (fs FeatureSet) ObjectIDs() []int64 {
	oids := make([]int64, 0, len(fs.Features))
	for _, f := range fs.Features {
		if oid, ok := f.ObjectID(); ok {
			oids = append(oids, oid)
		}
	}
	return oids
}

// FindByObjectID returns the feature with the given object id.
func (fs FeatureSet) FindByObjectID(oid int64) (Feature, bool) {
	for _, f := range fs.Features {
		if id, ok := f.ObjectID(); ok && id == oid {
			return f, true
		}
	}
	return Feature{}, false
}

// EditResult is the per-feature outcome of an applyEdits call.
type EditResult struct {
	ObjectID int64     `json:"objectId"`
	Success  bool      `json:"success"`
	Error    *apiError `json:"error,omitempty"`
}

// EditResults is the full applyEdits response.
type EditResults struct {
	AddResults    []EditResult `json:"addResults"`
	UpdateResults []EditResult `json:"updateResults"`
	DeleteResults []EditResult `json:"deleteResults"`
}

// Err returns an error describing the first failed edit, or nil when every
// edit succeeded.
func (r EditResults) Err() error {
	for _, group := range [][]EditResult{r.AddResults, r.UpdateResults, r.DeleteResults} {
		for _, res := range group {
			if !res.Success {
				msg := "unknown error"
				if res.Error != nil {
					msg = res.Error.Message
				}
				return fmt.Errorf("edit of object %d failed: %s", res.ObjectID, msg)
			}
		}
	}
	return nil
}

// Attachment describes a feature attachment.
type Attachment struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// RelatedRecordGroup holds the records related to one source feature.
type RelatedRecordGroup struct {
	ObjectID       int64     `json:"objectId"`
	RelatedRecords []Feature `json:"relatedRecords"`
}
