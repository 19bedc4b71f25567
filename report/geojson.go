package report

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/bcgov/wildsync/ago"
)

// FeaturesToGeoJSON serializes point features and their attributes as a
// GeoJSON feature collection. Features without geometry keep their
// attributes and get a null geometry.
func FeaturesToGeoJSON(features []ago.Feature) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		var gf *geojson.Feature
		if f.Geometry != nil {
			gf = geojson.NewFeature(orb.Point{f.Geometry.X, f.Geometry.Y})
		} else {
			gf = &geojson.Feature{Type: "Feature"}
		}
		gf.Properties = geojson.Properties(f.Attributes)
		fc.Append(gf)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return data, nil
}

// GeoJSONToFeatures parses a GeoJSON feature collection back into point
// features. Non-point geometries are rejected.
func GeoJSONToFeatures(data []byte) ([]ago.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal feature collection: %w", err)
	}

	features := make([]ago.Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		f := ago.Feature{Attributes: map[string]any(gf.Properties)}
		if f.Attributes == nil {
			f.Attributes = map[string]any{}
		}
		if gf.Geometry != nil {
			pt, ok := gf.Geometry.(orb.Point)
			if !ok {
				return nil, fmt.Errorf("feature %d: unsupported geometry type %s", i, gf.Geometry.GeoJSONType())
			}
			f.Geometry = &ago.Point{X: pt.X(), Y: pt.Y()}
		}
		features = append(features, f)
	}
	return features, nil
}
