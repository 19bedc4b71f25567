package report

import (
	"fmt"
	"os"

	kml "github.com/twpayne/go-kml/v2"
)

// Placemark is a single named point in WGS84 coordinates.
type Placemark struct {
	Name string
	Lon  float64
	Lat  float64
}

// WriteKML writes the placemarks as a KML document.
func WriteKML(path string, placemarks []Placemark) error {
	doc := kml.Document()
	for _, p := range placemarks {
		doc.Add(kml.Placemark(
			kml.Name(p.Name),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Lon, Lat: p.Lat})),
		))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := kml.KML(doc).WriteIndent(f, "", "  "); err != nil {
		return fmt.Errorf("write kml %s: %w", path, err)
	}
	return f.Close()
}
