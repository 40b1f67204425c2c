package centerline

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Tolerance is the absolute per-axis tolerance for coordinate comparisons
// (duplicate-run collapse and loop-closure trim). Every comparison in the
// package goes through this constant.
const Tolerance = 1e-6

// sameCoordinate reports whether two points agree within Tolerance on both
// axes.
func sameCoordinate(a, b orb.Point) bool {
	return math.Abs(a.Lat()-b.Lat()) <= Tolerance &&
		math.Abs(a.Lon()-b.Lon()) <= Tolerance
}

// coordKey is the GlobalDedup set key: each axis independently rounded to
// 6 decimal places.
type coordKey struct {
	lat, lon float64
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func keyOf(p orb.Point) coordKey {
	return coordKey{lat: round6(p.Lat()), lon: round6(p.Lon())}
}

// parseCoordinateTokens parses KML coordinate text (whitespace-separated
// "lon,lat[,alt]" tuples) into points. A token with fewer than two fields
// or a non-numeric lon/lat is dropped, never fatal to the document.
// Altitude is discarded.
func parseCoordinateTokens(raw string) (orb.LineString, int) {
	var points orb.LineString
	dropped := 0

	for _, token := range strings.Fields(strings.TrimSpace(raw)) {
		values := strings.Split(token, ",")
		if len(values) < 2 {
			dropped++
			continue
		}

		lon, err1 := strconv.ParseFloat(values[0], 64)
		lat, err2 := strconv.ParseFloat(values[1], 64)
		if err1 != nil || err2 != nil {
			dropped++
			continue
		}

		points = append(points, orb.Point{lon, lat})
	}

	return points, dropped
}

// Normalize parses each node's coordinate text and applies the configured
// filter policies, yielding ordered segments. Policies only remove points,
// never reorder them. Filters run collapse → global dedup → loop trim; the
// trim emits a Warning per removed closure. The third return value counts
// tokens dropped during parsing.
func Normalize(nodes []GeometryNode, opts NormalizeOptions) ([]Segment, []Warning, int) {
	var segments []Segment
	dropped := 0

	if opts.PerNodeSegments {
		for _, node := range nodes {
			points, d := parseCoordinateTokens(node.Raw)
			dropped += d
			if len(points) == 0 {
				continue
			}
			segments = append(segments, Segment{Name: node.Name, Points: points})
		}
	} else {
		var merged orb.LineString
		for _, node := range nodes {
			points, d := parseCoordinateTokens(node.Raw)
			dropped += d
			merged = append(merged, points...)
		}
		if len(merged) > 0 {
			segments = append(segments, Segment{Points: merged})
		}
	}

	if opts.CollapseRuns {
		for i := range segments {
			segments[i].Points = collapseRuns(segments[i].Points)
		}
	}

	if opts.GlobalDedup {
		seen := make(map[coordKey]bool)
		kept := segments[:0]
		for _, seg := range segments {
			var points orb.LineString
			for _, p := range seg.Points {
				k := keyOf(p)
				if seen[k] {
					continue
				}
				seen[k] = true
				points = append(points, p)
			}
			if len(points) == 0 {
				continue
			}
			seg.Points = points
			kept = append(kept, seg)
		}
		segments = kept
	}

	var warnings []Warning
	if opts.TrimClosure {
		for i := range segments {
			points := segments[i].Points
			if len(points) > 1 && sameCoordinate(points[0], points[len(points)-1]) {
				segments[i].Points = points[:len(points)-1]
				warnings = append(warnings, Warning{
					Segment: i,
					Message: fmt.Sprintf("last coordinate closed the loop back to the first; trimmed it (%d points remain)", len(points)-1),
				})
			}
		}
	}

	total := 0
	for _, seg := range segments {
		total += len(seg.Points)
	}
	slog.Debug("coordinates normalized",
		"segments", len(segments), "coordinates", total, "dropped_tokens", dropped)

	return segments, warnings, dropped
}

// collapseRuns drops each point within Tolerance of the previous kept point
// on both axes. Idempotent.
func collapseRuns(points orb.LineString) orb.LineString {
	if len(points) < 2 {
		return points
	}

	kept := points[:1]
	for _, p := range points[1:] {
		if sameCoordinate(p, kept[len(kept)-1]) {
			continue
		}
		kept = append(kept, p)
	}

	return kept
}
