package centerline

import "errors"

// Pipeline failures returned to the caller layer. Callers branch with
// errors.Is; user-facing wording lives in the HTTP/CLI layers.
var (
	// ErrUnsupportedFileType is returned when the upload's extension is
	// neither .kml nor .kmz.
	ErrUnsupportedFileType = errors.New("convert: unsupported file type, expected .kml or .kmz")

	// ErrNoKMLInArchive is returned when a KMZ container holds no entry
	// named like a KML document.
	ErrNoKMLInArchive = errors.New("kmz: no kml document in archive")

	// ErrXMLParse is returned when no XML root element can be established
	// at all (empty buffer, non-XML bytes). Malformed-but-started documents
	// are salvaged instead.
	ErrXMLParse = errors.New("kml: cannot parse document")

	// ErrNoGeometry is returned when the document parsed but contained no
	// coordinates matching the selection mode. Callers should present this
	// as "nothing to export", not a system error.
	ErrNoGeometry = errors.New("kml: no matching geometry found")
)

// Warning is a non-fatal notice produced during normalization, carried on
// the conversion result rather than returned as an error.
type Warning struct {
	Segment int    `json:"segment"`
	Message string `json:"message"`
}
