package centerline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-kml/v3"
)

func simpleLineDoc(t *testing.T) []byte {
	t.Helper()
	return buildKMLDoc(t,
		kml.Placemark(
			kml.Name("Mainline"),
			kml.LineString(kml.Coordinates(
				kml.Coordinate{Lon: -122.1, Lat: 37.7},
				kml.Coordinate{Lon: -122.2, Lat: 37.8},
				kml.Coordinate{Lon: -122.3, Lat: 37.9},
			)),
		),
	)
}

func TestConvertKMLDefaults(t *testing.T) {
	converter := NewConverter(nil, nil)

	result, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "route.kml",
		Data:     simpleLineDoc(t),
		Options:  DefaultVariantOptions(),
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	if result.JobID == "" {
		t.Error("JobID should not be empty")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warning count mismatch: got %d, expected 0", len(result.Warnings))
	}

	expectedStats := ConvertStats{NodesMatched: 1, Coordinates: 3, Segments: 1, DroppedTokens: 0}
	if result.Stats != expectedStats {
		t.Errorf("Stats mismatch: got %+v, expected %+v", result.Stats, expectedStats)
	}

	if len(result.Artifacts) != 2 {
		t.Fatalf("Artifact count mismatch: got %d, expected 2", len(result.Artifacts))
	}

	csvArtifact := result.Artifacts[0]
	if csvArtifact.Name != "Centerline.csv" || csvArtifact.ContentType != "text/csv" {
		t.Errorf("CSV artifact mismatch: got %s (%s)", csvArtifact.Name, csvArtifact.ContentType)
	}
	expectedCSV := "Begin Line\nLatitude,Longitude\n37.7,-122.1\n37.8,-122.2\n37.9,-122.3\nEnd\n"
	if string(csvArtifact.Data) != expectedCSV {
		t.Errorf("CSV content mismatch:\ngot:\n%q\nexpected:\n%q", csvArtifact.Data, expectedCSV)
	}

	txtArtifact := result.Artifacts[1]
	if txtArtifact.Name != "Centerline.txt" || txtArtifact.ContentType != "text/plain" {
		t.Errorf("TXT artifact mismatch: got %s (%s)", txtArtifact.Name, txtArtifact.ContentType)
	}
	if string(txtArtifact.Data) != expectedCSV {
		t.Errorf("TXT content mismatch:\ngot:\n%q\nexpected:\n%q", txtArtifact.Data, expectedCSV)
	}
}

// A KMZ wrapping of the same document must yield identical artifacts.
func TestConvertKMZMatchesKML(t *testing.T) {
	converter := NewConverter(nil, nil)
	doc := simpleLineDoc(t)

	fromKML, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "route.kml",
		Data:     doc,
		Options:  DefaultVariantOptions(),
	})
	if err != nil {
		t.Fatalf("KML convert returned error: %v", err)
	}

	fromKMZ, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "route.kmz",
		Data:     buildKMZ(t, [2]string{"doc.kml", string(doc)}),
		Options:  DefaultVariantOptions(),
	})
	if err != nil {
		t.Fatalf("KMZ convert returned error: %v", err)
	}

	if len(fromKML.Artifacts) != len(fromKMZ.Artifacts) {
		t.Fatalf("Artifact count mismatch: got %d, expected %d", len(fromKMZ.Artifacts), len(fromKML.Artifacts))
	}
	for i := range fromKML.Artifacts {
		if !bytes.Equal(fromKML.Artifacts[i].Data, fromKMZ.Artifacts[i].Data) {
			t.Errorf("Artifact %s differs between KML and KMZ input", fromKML.Artifacts[i].Name)
		}
	}
}

func TestConvertAGMPointsPreset(t *testing.T) {
	doc := buildKMLDoc(t,
		kml.Placemark(
			kml.Name("AGM-1"),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: -98.5, Lat: 29.4})),
		),
		kml.Placemark(
			kml.Name("AGM-1 duplicate"),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: -98.5, Lat: 29.4})),
		),
		kml.Placemark(
			kml.Name("AGM-2"),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: -98.6, Lat: 29.5})),
		),
	)

	preset, ok := PresetByName("agm-points")
	if !ok {
		t.Fatal("agm-points preset missing")
	}

	converter := NewConverter(nil, nil)
	result, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "agms.kml",
		Data:     doc,
		Options:  preset.Options,
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	if result.Stats.NodesMatched != 3 {
		t.Errorf("NodesMatched mismatch: got %d, expected 3", result.Stats.NodesMatched)
	}
	if result.Stats.Coordinates != 2 {
		t.Errorf("Coordinates mismatch: got %d, expected 2 (duplicate dropped)", result.Stats.Coordinates)
	}

	csvArtifact := result.Artifacts[0]
	if csvArtifact.Name != "Preliminary AGM locations.csv" {
		t.Errorf("Artifact name mismatch: got %q, expected %q", csvArtifact.Name, "Preliminary AGM locations.csv")
	}
	expectedCSV := "Latitude,Longitude,Icon,LineStringColor\n29.4,-98.5,none,Red\n29.5,-98.6,none,Red\n"
	if string(csvArtifact.Data) != expectedCSV {
		t.Errorf("CSV content mismatch:\ngot:\n%q\nexpected:\n%q", csvArtifact.Data, expectedCSV)
	}

	expectedTXT := "latitude, longitude\n29.4, -98.5\n29.5, -98.6\n"
	if string(result.Artifacts[1].Data) != expectedTXT {
		t.Errorf("TXT content mismatch:\ngot:\n%q\nexpected:\n%q", result.Artifacts[1].Data, expectedTXT)
	}
}

func TestConvertSegmentsPreset(t *testing.T) {
	doc := buildKMLDoc(t,
		kml.Placemark(
			kml.Name("Line A"),
			kml.LineString(kml.Coordinates(
				kml.Coordinate{Lon: -122.1, Lat: 37.7},
				kml.Coordinate{Lon: -122.2, Lat: 37.8},
			)),
		),
		kml.Placemark(
			kml.Name("Marker"),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: -100.0, Lat: 40.0})),
		),
		kml.Placemark(
			kml.Name("Line B"),
			kml.LineString(kml.Coordinates(
				kml.Coordinate{Lon: -98.5, Lat: 29.4},
				kml.Coordinate{Lon: -98.6, Lat: 29.5},
			)),
		),
	)

	preset, ok := PresetByName("centerline-segments")
	if !ok {
		t.Fatal("centerline-segments preset missing")
	}

	converter := NewConverter(nil, nil)
	result, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "route.kml",
		Data:     doc,
		Options:  preset.Options,
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	// The point placemark is not a LineString and must be excluded.
	if result.Stats.Segments != 2 {
		t.Errorf("Segment count mismatch: got %d, expected 2", result.Stats.Segments)
	}

	expectedCSV := "Latitude,Longitude\n" +
		"Begin Line,\n37.7,-122.1\n37.8,-122.2\nEnd,\n" +
		"Begin Line,\n29.4,-98.5\n29.5,-98.6\nEnd,\n"
	if string(result.Artifacts[0].Data) != expectedCSV {
		t.Errorf("CSV content mismatch:\ngot:\n%q\nexpected:\n%q", result.Artifacts[0].Data, expectedCSV)
	}

	expectedTXT := "latitude,longitude\n" +
		"Begin Line\n37.7,-122.1\n37.8,-122.2\nEnd Line\n" +
		"\nBegin Line\n29.4,-98.5\n29.5,-98.6\nEnd Line\n"
	if string(result.Artifacts[1].Data) != expectedTXT {
		t.Errorf("TXT content mismatch:\ngot:\n%q\nexpected:\n%q", result.Artifacts[1].Data, expectedTXT)
	}
}

func TestConvertErrors(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		data        []byte
		expectedErr error
	}{
		{
			name:        "Unsupported extension",
			filename:    "route.gpx",
			data:        []byte("<kml></kml>"),
			expectedErr: ErrUnsupportedFileType,
		},
		{
			name:        "KMZ without kml entry",
			filename:    "route.kmz",
			data:        nil, // populated below
			expectedErr: ErrNoKMLInArchive,
		},
		{
			name:        "Empty buffer",
			filename:    "route.kml",
			data:        []byte{},
			expectedErr: ErrXMLParse,
		},
		{
			name:        "Document without coordinates",
			filename:    "route.kml",
			data:        []byte(`<kml><Document><Placemark><name>empty</name></Placemark></Document></kml>`),
			expectedErr: ErrNoGeometry,
		},
		{
			name:        "All coordinate tokens malformed",
			filename:    "route.kml",
			data:        []byte(`<kml><Placemark><LineString><coordinates>garbage junk</coordinates></LineString></Placemark></kml>`),
			expectedErr: ErrNoGeometry,
		},
	}

	converter := NewConverter(nil, nil)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			if tc.name == "KMZ without kml entry" {
				data = buildKMZ(t, [2]string{"readme.txt", "no kml here"})
			}

			_, err := converter.Convert(context.Background(), ConvertRequest{
				Filename: tc.filename,
				Data:     data,
				Options:  DefaultVariantOptions(),
			})
			if !errors.Is(err, tc.expectedErr) {
				t.Errorf("Error mismatch: got %v, expected %v", err, tc.expectedErr)
			}
		})
	}
}

// The same broken buffer must fail the same way on every attempt.
func TestConvertEmptyBufferDeterministic(t *testing.T) {
	converter := NewConverter(nil, nil)

	for i := 0; i < 3; i++ {
		_, err := converter.Convert(context.Background(), ConvertRequest{
			Filename: "empty.kml",
			Data:     []byte{},
			Options:  DefaultVariantOptions(),
		})
		if !errors.Is(err, ErrXMLParse) {
			t.Fatalf("Attempt %d error mismatch: got %v, expected ErrXMLParse", i+1, err)
		}
	}
}

func TestConvertBundle(t *testing.T) {
	opts := DefaultVariantOptions()
	opts.Bundle = true

	converter := NewConverter(nil, nil)
	result, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "route.kml",
		Data:     simpleLineDoc(t),
		Options:  opts,
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	if len(result.Artifacts) != 3 {
		t.Fatalf("Artifact count mismatch: got %d, expected 3 (csv, txt, zip)", len(result.Artifacts))
	}

	bundle := result.Artifacts[2]
	if bundle.Name != "Centerline.zip" || bundle.ContentType != "application/zip" {
		t.Fatalf("Bundle artifact mismatch: got %s (%s)", bundle.Name, bundle.ContentType)
	}

	zr, err := zip.NewReader(bytes.NewReader(bundle.Data), int64(len(bundle.Data)))
	if err != nil {
		t.Fatalf("Bundle does not open as a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("Bundle entry count mismatch: got %d, expected 2", len(zr.File))
	}
	for i, inner := range []Artifact{result.Artifacts[0], result.Artifacts[1]} {
		if zr.File[i].Name != inner.Name {
			t.Errorf("Bundle entry %d name mismatch: got %q, expected %q", i, zr.File[i].Name, inner.Name)
		}
	}
}

func TestConvertGeoJSONFormat(t *testing.T) {
	opts := DefaultVariantOptions()
	opts.Formats = []OutputFormat{OutputGeoJSON}

	converter := NewConverter(nil, nil)
	result, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "route.kml",
		Data:     simpleLineDoc(t),
		Options:  opts,
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	if len(result.Artifacts) != 1 {
		t.Fatalf("Artifact count mismatch: got %d, expected 1", len(result.Artifacts))
	}
	a := result.Artifacts[0]
	if a.Name != "Centerline.geojson" || a.ContentType != "application/geo+json" {
		t.Errorf("Artifact mismatch: got %s (%s)", a.Name, a.ContentType)
	}

	fc, err := geojson.UnmarshalFeatureCollection(a.Data)
	if err != nil {
		t.Fatalf("Artifact does not parse as a FeatureCollection: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Errorf("Feature count mismatch: got %d, expected 1", len(fc.Features))
	}
}

// Zero-value options fall back to any-coordinates, minimal profile,
// CSV+TXT, and the Centerline base name.
func TestConvertOptionFallbacks(t *testing.T) {
	converter := NewConverter(nil, nil)

	result, err := converter.Convert(context.Background(), ConvertRequest{
		Filename: "route.kml",
		Data:     simpleLineDoc(t),
		Options:  VariantOptions{},
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	if len(result.Artifacts) != 2 {
		t.Fatalf("Artifact count mismatch: got %d, expected 2", len(result.Artifacts))
	}
	if result.Artifacts[0].Name != "Centerline.csv" || result.Artifacts[1].Name != "Centerline.txt" {
		t.Errorf("Artifact names mismatch: got %q, %q", result.Artifacts[0].Name, result.Artifacts[1].Name)
	}
}
