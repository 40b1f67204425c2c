// compare-exports diffs two GeoJSON exports of the same document, typically
// one converted without filters and one converted with collapse/dedup/trim
// enabled. Filters may only remove coordinates, so a grown output means the
// pipeline misbehaved.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: compare-exports <before-geojson> <after-geojson>")
		fmt.Println("Example: compare-exports raw/Centerline.geojson filtered/Centerline.geojson")
		os.Exit(1)
	}

	beforePath := os.Args[1]
	afterPath := os.Args[2]

	before, err := loadCollection(beforePath)
	if err != nil {
		fmt.Printf("Error loading before export: %v\n", err)
		os.Exit(1)
	}

	after, err := loadCollection(afterPath)
	if err != nil {
		fmt.Printf("Error loading after export: %v\n", err)
		os.Exit(1)
	}

	compare(before, after, beforePath, afterPath)
}

func loadCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}

func compare(before, after *geojson.FeatureCollection, beforePath, afterPath string) {
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Println("Export Comparison")
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Printf("BEFORE: %s\n", beforePath)
	fmt.Printf("AFTER:  %s\n", afterPath)
	fmt.Println()

	fmt.Println("📊 Segment Counts:")
	fmt.Printf("  BEFORE segments: %d\n", len(before.Features))
	fmt.Printf("  AFTER segments:  %d\n", len(after.Features))
	segDiff := len(after.Features) - len(before.Features)
	switch {
	case segDiff > 0:
		fmt.Printf("  Difference:      +%d (AFTER has more) ⚠️\n", segDiff)
	case segDiff < 0:
		fmt.Printf("  Difference:      %d (filters dropped whole segments)\n", segDiff)
	default:
		fmt.Printf("  Difference:      0 (equal)\n")
	}
	fmt.Println()

	beforeCoords := countTotalCoordinates(before)
	afterCoords := countTotalCoordinates(after)
	fmt.Println("📍 Coordinate Point Counts:")
	fmt.Printf("  BEFORE total coordinates: %d\n", beforeCoords)
	fmt.Printf("  AFTER total coordinates:  %d\n", afterCoords)
	coordDiff := afterCoords - beforeCoords
	switch {
	case coordDiff > 0:
		fmt.Printf("  Difference:               +%d ⚠️ OUTPUT GREW!\n", coordDiff)
	case coordDiff < 0:
		fmt.Printf("  Difference:               %d (removed by filters)\n", coordDiff)
	default:
		fmt.Printf("  Difference:               0 ✓\n")
	}
	fmt.Println()

	fmt.Println("🗺️  Geometry Types:")
	fmt.Println("  BEFORE:")
	for gtype, count := range countGeometryTypes(before) {
		fmt.Printf("    %s: %d\n", gtype, count)
	}
	fmt.Println("  AFTER:")
	for gtype, count := range countGeometryTypes(after) {
		fmt.Printf("    %s: %d\n", gtype, count)
	}
	fmt.Println()

	fmt.Println("🏷️  Segment Name Analysis:")
	beforeNames := segmentNames(before)
	afterNames := segmentNames(after)
	fmt.Printf("  BEFORE unique names: %d\n", len(beforeNames))
	fmt.Printf("  AFTER unique names:  %d\n", len(afterNames))

	missing := findMissing(beforeNames, afterNames)
	extra := findMissing(afterNames, beforeNames)
	if len(missing) > 0 {
		fmt.Printf("  Names in BEFORE but not AFTER: %d\n", len(missing))
		for i, name := range missing {
			if i == 10 {
				fmt.Printf("    ... and %d more\n", len(missing)-10)
				break
			}
			fmt.Printf("    - %s\n", name)
		}
	} else {
		fmt.Println("  ✓ All BEFORE names found in AFTER")
	}
	if len(extra) > 0 {
		fmt.Printf("  ⚠️  Names in AFTER but not BEFORE: %d\n", len(extra))
	}
	fmt.Println()

	fmt.Println("🔍 Sample Segments (first 5 from each):")
	fmt.Println("  BEFORE:")
	printSamples(before)
	fmt.Println("  AFTER:")
	printSamples(after)
	fmt.Println()

	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Println("Assessment:")
	if coordDiff > 0 {
		fmt.Println("  ⚠️  CRITICAL: the filtered output has MORE coordinates than its input.")
		fmt.Println("     Filters may only remove points; investigate the conversion options.")
	} else if coordDiff == 0 {
		fmt.Println("  ✓ Coordinate counts equal - filters removed nothing")
	} else {
		fmt.Printf("  ✓ Filters removed %d coordinates", -coordDiff)
		if segDiff < 0 {
			fmt.Printf(" and %d whole segments", -segDiff)
		}
		fmt.Println()
	}
	if len(extra) > 0 {
		fmt.Println("  ⚠️  WARNING: AFTER contains segment names absent from BEFORE.")
		fmt.Println("     The two exports may not come from the same source document.")
	}
	fmt.Println("=" + strings.Repeat("=", 70))
}

func printSamples(fc *geojson.FeatureCollection) {
	for i := 0; i < min(5, len(fc.Features)); i++ {
		f := fc.Features[i]
		name := propertyString(f.Properties, "name")
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("    %d. %s (%s, %d coords)\n",
			i+1, name, f.Geometry.GeoJSONType(), countGeometryCoords(f.Geometry))
	}
}

func countTotalCoordinates(fc *geojson.FeatureCollection) int {
	total := 0
	for _, f := range fc.Features {
		total += countGeometryCoords(f.Geometry)
	}
	return total
}

func countGeometryCoords(g orb.Geometry) int {
	switch v := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(v)
	case orb.LineString:
		return len(v)
	case orb.MultiLineString:
		total := 0
		for _, ls := range v {
			total += len(ls)
		}
		return total
	case orb.Ring:
		return len(v)
	case orb.Polygon:
		total := 0
		for _, ring := range v {
			total += len(ring)
		}
		return total
	case orb.MultiPolygon:
		total := 0
		for _, p := range v {
			total += countGeometryCoords(p)
		}
		return total
	case orb.Collection:
		total := 0
		for _, member := range v {
			total += countGeometryCoords(member)
		}
		return total
	}
	return 0
}

func countGeometryTypes(fc *geojson.FeatureCollection) map[string]int {
	types := make(map[string]int)
	for _, f := range fc.Features {
		types[f.Geometry.GeoJSONType()]++
	}
	return types
}

func segmentNames(fc *geojson.FeatureCollection) []string {
	seen := make(map[string]bool)
	for _, f := range fc.Features {
		if name := propertyString(f.Properties, "name"); name != "" {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func findMissing(set1, set2 []string) []string {
	inSet2 := make(map[string]bool)
	for _, name := range set2 {
		inSet2[name] = true
	}

	missing := []string{}
	for _, name := range set1 {
		if !inSet2[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func propertyString(props map[string]interface{}, key string) string {
	if val, ok := props[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
