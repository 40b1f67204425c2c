package centerline

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// RenderGeoJSON renders segments as a GeoJSON FeatureCollection: one
// feature per segment with a LineString geometry, degrading to Point when
// the segment holds a single coordinate. Segment names become the "name"
// property.
func RenderGeoJSON(segments []Segment) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	for _, seg := range segments {
		var feature *geojson.Feature
		if len(seg.Points) == 1 {
			feature = geojson.NewFeature(seg.Points[0])
		} else {
			feature = geojson.NewFeature(seg.Points)
		}
		if seg.Name != "" {
			feature.Properties["name"] = seg.Name
		}
		fc.Append(feature)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	return data, nil
}
