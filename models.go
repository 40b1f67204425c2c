package centerline

import (
	"time"

	"github.com/paulmach/orb"
)

// Geometry node kinds recorded by the extractor.
const (
	KindLineString = "LineString"
	KindPoint      = "Point"
	KindGeneric    = "generic"
)

// GeometryNode is one coordinate-bearing element located in the document,
// in document order, before any token parsing or filtering.
type GeometryNode struct {
	Kind string // "LineString", "Point", or "generic"
	Name string // enclosing Placemark name, empty when absent
	Raw  string // raw text content of the coordinates element
}

// Segment is one contiguous ordered coordinate sequence: a line's path or
// one placemark's point set. Point order equals document order of the
// source tokens; filters only ever remove, never reorder.
type Segment struct {
	Name   string
	Points orb.LineString
}

// Artifact is one rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// ConvertRequest carries one upload through the pipeline.
type ConvertRequest struct {
	Filename string
	Data     []byte
	Options  VariantOptions
}

// ConvertStats summarizes what a conversion saw and kept.
type ConvertStats struct {
	NodesMatched  int `json:"nodes_matched"`
	Coordinates   int `json:"coordinates"`
	Segments      int `json:"segments"`
	DroppedTokens int `json:"dropped_tokens"`
}

// ConvertResult is the outcome of a successful conversion.
type ConvertResult struct {
	JobID     string
	Segments  []Segment
	Artifacts []Artifact
	Warnings  []Warning
	Stats     ConvertStats
	Uploads   []UploadResult
}

// ConversionJob is the persisted record of one conversion request.
type ConversionJob struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	Mode         string     `json:"mode"`
	Profile      string     `json:"profile"`
	Status       string     `json:"status"` // "processing", "completed", "failed"
	Segments     int        `json:"segments"`
	Coordinates  int        `json:"coordinates"`
	Artifacts    int        `json:"artifacts"`
	ErrorMessage *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
