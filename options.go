package centerline

import (
	"fmt"
	"strings"
)

// SelectionMode picks which geometry elements the extractor matches.
type SelectionMode int

const (
	// ModeAnyCoordinates matches every coordinates element anywhere in the
	// document, regardless of the enclosing geometry type.
	ModeAnyCoordinates SelectionMode = iota
	// ModeLineString matches only coordinates nested under a LineString.
	ModeLineString
	// ModePlacemarkPoint matches the first Point coordinates of each
	// Placemark, at most one coordinate per Placemark.
	ModePlacemarkPoint
)

func (m SelectionMode) String() string {
	switch m {
	case ModeLineString:
		return "linestring"
	case ModePlacemarkPoint:
		return "placemark-point"
	default:
		return "any"
	}
}

// ParseSelectionMode maps a CLI/form value to a SelectionMode.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "any-coordinates", "coordinates":
		return ModeAnyCoordinates, nil
	case "linestring", "linestring-only", "line":
		return ModeLineString, nil
	case "placemark-point", "point", "placemark":
		return ModePlacemarkPoint, nil
	}
	return ModeAnyCoordinates, fmt.Errorf("unknown selection mode %q", s)
}

// ExportProfile picks the tabular layout for CSV and TXT artifacts.
type ExportProfile int

const (
	// ProfileMinimal writes one Begin Line/End block with a
	// Latitude,Longitude header.
	ProfileMinimal ExportProfile = iota
	// ProfileExtended writes Latitude,Longitude,Icon,LineStringColor rows
	// with constant fill values and no block markers.
	ProfileExtended
	// ProfileSegmented writes the header once and one marker-wrapped block
	// per segment.
	ProfileSegmented
)

func (p ExportProfile) String() string {
	switch p {
	case ProfileExtended:
		return "extended"
	case ProfileSegmented:
		return "segmented"
	default:
		return "minimal"
	}
}

// ParseExportProfile maps a CLI/form value to an ExportProfile.
func ParseExportProfile(s string) (ExportProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minimal":
		return ProfileMinimal, nil
	case "extended":
		return ProfileExtended, nil
	case "segmented", "segments":
		return ProfileSegmented, nil
	}
	return ProfileMinimal, fmt.Errorf("unknown export profile %q", s)
}

// OutputFormat names one artifact format a conversion can produce.
type OutputFormat string

const (
	OutputCSV     OutputFormat = "csv"
	OutputTXT     OutputFormat = "txt"
	OutputGeoJSON OutputFormat = "geojson"
)

// ParseOutputFormats parses a comma-separated format list ("csv,txt").
func ParseOutputFormats(s string) ([]OutputFormat, error) {
	if strings.TrimSpace(s) == "" {
		return []OutputFormat{OutputCSV, OutputTXT}, nil
	}
	var formats []OutputFormat
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "csv":
			formats = append(formats, OutputCSV)
		case "txt", "text":
			formats = append(formats, OutputTXT)
		case "geojson", "json":
			formats = append(formats, OutputGeoJSON)
		case "":
		default:
			return nil, fmt.Errorf("unknown output format %q", part)
		}
	}
	if len(formats) == 0 {
		return []OutputFormat{OutputCSV, OutputTXT}, nil
	}
	return formats, nil
}

// NormalizeOptions are the composable coordinate filter policies. All four
// default to off, which keeps every parsed coordinate merged into a single
// segment in document order.
type NormalizeOptions struct {
	// PerNodeSegments keeps one segment per matched geometry node instead
	// of merging all nodes into one segment.
	PerNodeSegments bool
	// CollapseRuns drops coordinates within Tolerance of the previous kept
	// coordinate on both axes, per segment.
	CollapseRuns bool
	// TrimClosure drops a segment's last coordinate when it matches the
	// first within Tolerance, emitting a Warning.
	TrimClosure bool
	// GlobalDedup drops coordinates whose 6-decimal rounded key was already
	// seen anywhere in the document.
	GlobalDedup bool
}

// VariantOptions configures one conversion invocation: selection mode,
// filter policies, output profile, and artifact set.
type VariantOptions struct {
	Mode      SelectionMode
	Normalize NormalizeOptions
	Profile   ExportProfile
	Formats   []OutputFormat
	Bundle    bool
	Upload    bool
	// BaseName is the artifact name stem, e.g. "Centerline" yields
	// Centerline.csv / Centerline.txt.
	BaseName string
}

// Preset is a named VariantOptions bundle matching one of the historically
// shipped conversion variants.
type Preset struct {
	Name        string
	Description string
	Options     VariantOptions
}

var presets = []Preset{
	{
		Name:        "centerline",
		Description: "every coordinates element, unfiltered, one Begin Line/End block",
		Options: VariantOptions{
			Mode:     ModeAnyCoordinates,
			Profile:  ProfileMinimal,
			Formats:  []OutputFormat{OutputCSV, OutputTXT},
			BaseName: "Centerline",
		},
	},
	{
		Name:        "centerline-dedup",
		Description: "every coordinates element with duplicate-run collapse and loop-closure trim",
		Options: VariantOptions{
			Mode:      ModeAnyCoordinates,
			Normalize: NormalizeOptions{CollapseRuns: true, TrimClosure: true},
			Profile:   ProfileMinimal,
			Formats:   []OutputFormat{OutputCSV, OutputTXT},
			BaseName:  "centerline",
		},
	},
	{
		Name:        "centerline-segments",
		Description: "LineString geometry only, one marker-wrapped block per line",
		Options: VariantOptions{
			Mode:      ModeLineString,
			Normalize: NormalizeOptions{PerNodeSegments: true, CollapseRuns: true},
			Profile:   ProfileSegmented,
			Formats:   []OutputFormat{OutputCSV, OutputTXT},
			BaseName:  "Centerline",
		},
	},
	{
		Name:        "agm-points",
		Description: "one point per Placemark with global dedup, extended columns",
		Options: VariantOptions{
			Mode:      ModePlacemarkPoint,
			Normalize: NormalizeOptions{GlobalDedup: true},
			Profile:   ProfileExtended,
			Formats:   []OutputFormat{OutputCSV, OutputTXT},
			BaseName:  "Preliminary AGM locations",
		},
	},
}

// Presets returns the named variant presets in listing order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetByName looks up a preset; names are case-insensitive.
func PresetByName(name string) (Preset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}

// DefaultVariantOptions returns the options of the plain centerline preset.
func DefaultVariantOptions() VariantOptions {
	p, _ := PresetByName("centerline")
	return p.Options
}
