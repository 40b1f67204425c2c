package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	centerline "github.com/surveyline/centerline-service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: inspect-kml <path-to-kml-or-kmz>")
		fmt.Println("Example: inspect-kml ~/exports/route.kmz")
		os.Exit(1)
	}

	filePath := os.Args[1]

	raw, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	kmlData, err := centerline.UnwrapDocument(raw, filePath)
	if err != nil {
		fmt.Printf("Error unwrapping document: %v\n", err)
		os.Exit(1)
	}

	inspect(kmlData, raw, filepath.Base(filePath))
}

type modeReport struct {
	mode        centerline.SelectionMode
	nodes       int
	coordinates int
	dropped     int
	segments    []centerline.Segment
}

func inspect(kmlData, raw []byte, filename string) {
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Printf("KML/KMZ Inspection: %s\n", filename)
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Println()

	fmt.Println("📄 Document:")
	fmt.Printf("  Source format:   %s\n", centerline.DetectSource(filename))
	fmt.Printf("  Container bytes: %d\n", len(raw))
	fmt.Printf("  KML bytes:       %d\n", len(kmlData))
	fmt.Println()

	modes := []centerline.SelectionMode{
		centerline.ModeAnyCoordinates,
		centerline.ModeLineString,
		centerline.ModePlacemarkPoint,
	}

	var reports []modeReport
	for _, mode := range modes {
		nodes, err := centerline.ExtractGeometry(kmlData, mode)
		if err != nil {
			fmt.Printf("Error parsing document (%s mode): %v\n", mode, err)
			os.Exit(1)
		}

		segments, _, dropped := centerline.Normalize(nodes, centerline.NormalizeOptions{PerNodeSegments: true})
		total := 0
		for _, seg := range segments {
			total += len(seg.Points)
		}
		reports = append(reports, modeReport{
			mode:        mode,
			nodes:       len(nodes),
			coordinates: total,
			dropped:     dropped,
			segments:    segments,
		})
	}

	fmt.Println("📊 Geometry by selection mode:")
	for _, r := range reports {
		fmt.Printf("  %-16s %5d node(s)  %7d coordinate(s)  %d malformed token(s)\n",
			r.mode, r.nodes, r.coordinates, r.dropped)
	}
	fmt.Println()

	// Per-segment detail for the broadest mode.
	any := reports[0]
	fmt.Println("🔎 Segments (any mode, first 15):")
	for i, seg := range any.segments {
		if i >= 15 {
			fmt.Printf("  ... %d more\n", len(any.segments)-15)
			break
		}
		name := seg.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %2d. %-40s %6d point(s)\n", i+1, name, len(seg.Points))
	}
	fmt.Println()

	fmt.Println("🧹 Filter effect (any mode, merged):")
	filters := []struct {
		label string
		opts  centerline.NormalizeOptions
	}{
		{"no filter", centerline.NormalizeOptions{}},
		{"collapse runs", centerline.NormalizeOptions{CollapseRuns: true}},
		{"collapse + trim closure", centerline.NormalizeOptions{CollapseRuns: true, TrimClosure: true}},
		{"collapse + global dedup", centerline.NormalizeOptions{CollapseRuns: true, GlobalDedup: true}},
	}

	nodes, err := centerline.ExtractGeometry(kmlData, centerline.ModeAnyCoordinates)
	if err != nil {
		fmt.Printf("Error parsing document: %v\n", err)
		os.Exit(1)
	}
	for _, f := range filters {
		segments, warnings, _ := centerline.Normalize(nodes, f.opts)
		total := 0
		for _, seg := range segments {
			total += len(seg.Points)
		}
		note := ""
		if len(warnings) > 0 {
			note = fmt.Sprintf("  (%d warning(s))", len(warnings))
		}
		fmt.Printf("  %-26s %7d coordinate(s)%s\n", f.label, total, note)
	}
	fmt.Println()
	fmt.Println("=" + strings.Repeat("=", 70))
}
