package mapview

import (
	geojson "github.com/paulmach/go.geojson"
)

// FeatureCollection exports the snapshot as GeoJSON: one Point per marker and one
// LineString per trail segment, styled with simplestyle property names.
func (s Snapshot) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, m := range s.Markers {
		f := geojson.NewPointFeature([]float64{m.Position.Lng, m.Position.Lat})
		f.ID = uint64(m.ID)
		f.SetProperty("kind", "marker")
		f.SetProperty("title", m.Title)
		f.SetProperty("marker-color", m.Icon.FillColor)
		f.SetProperty("rotation", m.Icon.Rotation)
		fc.AddFeature(f)
	}

	for _, l := range s.Lines {
		coords := make([][]float64, len(l.Path))
		for i, p := range l.Path {
			coords[i] = []float64{p.Lng, p.Lat}
		}
		f := geojson.NewLineStringFeature(coords)
		f.ID = uint64(l.ID)
		f.SetProperty("kind", "trail")
		f.SetProperty("stroke", l.StrokeColor)
		f.SetProperty("stroke-width", l.StrokeWeight)
		f.SetProperty("stroke-opacity", l.StrokeOpacity)
		fc.AddFeature(f)
	}

	return fc
}
