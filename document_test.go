package centerline

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

// buildKMZ assembles an in-memory zip archive with the given entries, in
// order. Entry order matters for the first-.kml fallback.
func buildKMZ(t *testing.T, entries ...[2]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e[0])
		if err != nil {
			t.Fatalf("Failed to create zip entry %s: %v", e[0], err)
		}
		if _, err := f.Write([]byte(e[1])); err != nil {
			t.Fatalf("Failed to write zip entry %s: %v", e[0], err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finalize zip: %v", err)
	}
	return buf.Bytes()
}

func TestDetectSource(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
		expected SourceFormat
	}{
		{name: "Lowercase kml", filename: "route.kml", expected: SourceKML},
		{name: "Lowercase kmz", filename: "route.kmz", expected: SourceKMZ},
		{name: "Uppercase extension", filename: "ROUTE.KMZ", expected: SourceKMZ},
		{name: "Mixed case extension", filename: "Route.Kml", expected: SourceKML},
		{name: "Unsupported extension", filename: "route.gpx", expected: SourceUnknown},
		{name: "No extension", filename: "route", expected: SourceUnknown},
		{name: "Extension wins over directory name", filename: "exports.kmz/route.kml", expected: SourceKML},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectSource(tc.filename); got != tc.expected {
				t.Errorf("DetectSource(%q) = %v, expected %v", tc.filename, got, tc.expected)
			}
		})
	}
}

func TestUnwrapDocumentKMLPassthrough(t *testing.T) {
	data := []byte("<kml><Document></Document></kml>")

	got, err := UnwrapDocument(data, "route.kml")
	if err != nil {
		t.Fatalf("UnwrapDocument returned error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("KML bytes changed during unwrap: got %q, expected %q", got, data)
	}
}

func TestUnwrapDocumentUnsupportedType(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
	}{
		{name: "GPX file", filename: "route.gpx"},
		{name: "No extension", filename: "route"},
		{name: "Zip but not kmz", filename: "route.zip"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnwrapDocument([]byte("data"), tc.filename)
			if !errors.Is(err, ErrUnsupportedFileType) {
				t.Errorf("Error mismatch: got %v, expected ErrUnsupportedFileType", err)
			}
		})
	}
}

func TestUnwrapDocumentKMZ(t *testing.T) {
	testCases := []struct {
		name        string
		entries     [][2]string
		expected    string
		expectedErr error
	}{
		{
			name: "doc.kml preferred over other entries",
			entries: [][2]string{
				{"other.kml", "other"},
				{"doc.kml", "primary"},
			},
			expected: "primary",
		},
		{
			name: "root.kml when doc.kml absent",
			entries: [][2]string{
				{"zebra.kml", "other"},
				{"root.kml", "primary"},
			},
			expected: "primary",
		},
		{
			name: "index.kml when doc and root absent",
			entries: [][2]string{
				{"zebra.kml", "other"},
				{"index.kml", "primary"},
			},
			expected: "primary",
		},
		{
			name: "doc.kml beats root.kml regardless of archive order",
			entries: [][2]string{
				{"root.kml", "other"},
				{"doc.kml", "primary"},
			},
			expected: "primary",
		},
		{
			name: "Preferred name match is case-insensitive",
			entries: [][2]string{
				{"zebra.kml", "other"},
				{"DOC.KML", "primary"},
			},
			expected: "primary",
		},
		{
			name: "Preferred name matches in a subdirectory",
			entries: [][2]string{
				{"zebra.kml", "other"},
				{"files/doc.kml", "primary"},
			},
			expected: "primary",
		},
		{
			name: "First .kml in archive order otherwise",
			entries: [][2]string{
				{"images/icon.png", "png"},
				{"beta.kml", "first"},
				{"alpha.kml", "second"},
			},
			expected: "first",
		},
		{
			name: "Suffix match is case-insensitive",
			entries: [][2]string{
				{"ROUTE.KML", "primary"},
			},
			expected: "primary",
		},
		{
			name: "No kml entry at all",
			entries: [][2]string{
				{"readme.txt", "text"},
				{"images/icon.png", "png"},
			},
			expectedErr: ErrNoKMLInArchive,
		},
		{
			name:        "Empty archive",
			entries:     nil,
			expectedErr: ErrNoKMLInArchive,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := buildKMZ(t, tc.entries...)

			got, err := UnwrapDocument(data, "upload.kmz")
			if tc.expectedErr != nil {
				if !errors.Is(err, tc.expectedErr) {
					t.Errorf("Error mismatch: got %v, expected %v", err, tc.expectedErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("UnwrapDocument returned error: %v", err)
			}
			if string(got) != tc.expected {
				t.Errorf("Entry content mismatch: got %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestUnwrapDocumentCorruptKMZ(t *testing.T) {
	_, err := UnwrapDocument([]byte("this is not a zip archive"), "upload.kmz")
	if err == nil {
		t.Fatal("Expected error for corrupt archive, got nil")
	}
	if errors.Is(err, ErrNoKMLInArchive) {
		t.Errorf("Corrupt archive should not report ErrNoKMLInArchive: got %v", err)
	}
}
