package centerline

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
)

// SourceFormat classifies an upload by its declared filename.
type SourceFormat int

const (
	SourceUnknown SourceFormat = iota
	SourceKML
	SourceKMZ
)

func (f SourceFormat) String() string {
	switch f {
	case SourceKML:
		return "kml"
	case SourceKMZ:
		return "kmz"
	}
	return "unknown"
}

// kmzEntryPreference lists conventional names for the primary KML document
// inside a KMZ container, in resolution order.
var kmzEntryPreference = []string{"doc.kml", "root.kml", "index.kml"}

// DetectSource classifies an upload by filename extension, case-insensitive.
func DetectSource(filename string) SourceFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".kml":
		return SourceKML
	case ".kmz":
		return SourceKMZ
	}
	return SourceUnknown
}

// UnwrapDocument returns the KML bytes for an upload. KML input passes
// through unchanged; KMZ input is opened as a zip archive in memory and the
// embedded KML document is selected by name preference. Nothing touches
// disk.
func UnwrapDocument(data []byte, filename string) ([]byte, error) {
	switch DetectSource(filename) {
	case SourceKML:
		return data, nil
	case SourceKMZ:
		return unwrapKMZ(data, filename)
	}
	return nil, ErrUnsupportedFileType
}

func unwrapKMZ(data []byte, filename string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open KMZ archive: %w", err)
	}

	entry := pickKMLEntry(reader.File)
	if entry == nil {
		return nil, ErrNoKMLInArchive
	}
	slog.Debug("kml entry selected", "filename", filename, "entry", entry.Name)

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	kml, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive entry %s: %w", entry.Name, err)
	}

	return kml, nil
}

// pickKMLEntry selects the embedded KML document: conventional names first
// (basename match, case-insensitive), then the first entry with a .kml
// suffix in archive order.
func pickKMLEntry(files []*zip.File) *zip.File {
	for _, preferred := range kmzEntryPreference {
		for _, f := range files {
			if strings.EqualFold(path.Base(f.Name), preferred) {
				return f
			}
		}
	}

	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			return f
		}
	}

	return nil
}
