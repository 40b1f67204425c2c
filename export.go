package centerline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// Literal header and marker strings. Downstream mapping tools match these
// byte-for-byte; do not reword them.
const (
	markerBeginLine = "Begin Line"
	markerEnd       = "End"
	markerEndLine   = "End Line"

	headerLatLon       = "Latitude,Longitude"
	headerLatLonLower  = "latitude,longitude"
	headerLatLonSpaced = "latitude, longitude"
	extendedIcon       = "none"
	extendedColor      = "Red"
)

// formatCoord renders a coordinate with the shortest decimal form that
// round-trips the exact float64, no fixed decimal places.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderCSV renders segments to CSV bytes in the selected profile.
// Latitude always precedes longitude, the inverse of KML token order.
func RenderCSV(segments []Segment, profile ExportProfile) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	switch profile {
	case ProfileExtended:
		w.Write([]string{"Latitude", "Longitude", "Icon", "LineStringColor"})
		for _, seg := range segments {
			for _, p := range seg.Points {
				w.Write([]string{formatCoord(p.Lat()), formatCoord(p.Lon()), extendedIcon, extendedColor})
			}
		}

	case ProfileSegmented:
		w.Write([]string{"Latitude", "Longitude"})
		for _, seg := range segments {
			w.Write([]string{markerBeginLine, ""})
			for _, p := range seg.Points {
				w.Write([]string{formatCoord(p.Lat()), formatCoord(p.Lon())})
			}
			w.Write([]string{markerEnd, ""})
		}

	default: // ProfileMinimal
		w.Write([]string{markerBeginLine})
		w.Write([]string{"Latitude", "Longitude"})
		for _, seg := range segments {
			for _, p := range seg.Points {
				w.Write([]string{formatCoord(p.Lat()), formatCoord(p.Lon())})
			}
		}
		w.Write([]string{markerEnd})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderTXT renders segments to the DeLorme-style text layout matching the
// selected profile. Each profile carries its own header casing and marker
// convention, all literal contracts.
func RenderTXT(segments []Segment, profile ExportProfile) []byte {
	var b strings.Builder

	switch profile {
	case ProfileExtended:
		b.WriteString(headerLatLonSpaced + "\n")
		for _, seg := range segments {
			for _, p := range seg.Points {
				b.WriteString(formatCoord(p.Lat()) + ", " + formatCoord(p.Lon()) + "\n")
			}
		}

	case ProfileSegmented:
		b.WriteString(headerLatLonLower + "\n")
		for i, seg := range segments {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(markerBeginLine + "\n")
			for _, p := range seg.Points {
				b.WriteString(formatCoord(p.Lat()) + "," + formatCoord(p.Lon()) + "\n")
			}
			b.WriteString(markerEndLine + "\n")
		}

	default: // ProfileMinimal
		b.WriteString(markerBeginLine + "\n")
		b.WriteString(headerLatLon + "\n")
		for _, seg := range segments {
			for _, p := range seg.Points {
				b.WriteString(formatCoord(p.Lat()) + "," + formatCoord(p.Lon()) + "\n")
			}
		}
		b.WriteString(markerEnd + "\n")
	}

	return []byte(b.String())
}
