package centerline

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Namespace prefixes whose elements count as KML. Hand-edited files often
// omit the namespace entirely, and Google Earth exports predating the OGC
// handoff use the earth.google.com namespace; both are accepted. Extension
// namespaces (gx: etc.) never match the core element names.
const (
	kmlNamespacePrefix    = "http://www.opengis.net/kml/"
	legacyNamespacePrefix = "http://earth.google.com/kml/"
)

func isKMLName(name xml.Name, local string) bool {
	if name.Local != local {
		return false
	}
	return name.Space == "" ||
		strings.HasPrefix(name.Space, kmlNamespacePrefix) ||
		strings.HasPrefix(name.Space, legacyNamespacePrefix)
}

// placemarkContext tracks one open Placemark element during the walk.
// The display name can appear before or after the geometry, so nodes
// emitted inside the placemark are backfilled when it closes.
type placemarkContext struct {
	depth      int
	directName string
	anyName    string
	haveDirect bool
	haveAny    bool
	coords     string
	haveCoords bool
	nodeStart  int
}

func (pm *placemarkContext) displayName() string {
	if pm.haveDirect {
		return strings.TrimSpace(pm.directName)
	}
	if pm.haveAny {
		return strings.TrimSpace(pm.anyName)
	}
	return ""
}

// ExtractGeometry walks the KML document and returns every coordinate-
// bearing node the selection mode matches, in document order. Parsing is
// tolerant: the decoder runs non-strict and a document that breaks mid-
// stream keeps the nodes gathered up to that point. ErrXMLParse is returned
// only when no XML element was ever established (empty buffer, non-XML
// bytes). The extractor never filters or reorders; that is the normalizer's
// job.
func ExtractGeometry(data []byte, mode SelectionMode) ([]GeometryNode, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var (
		nodes           []GeometryNode
		pmStack         []*placemarkContext
		depth           int
		lineStringDepth int
		pointDepth      int
		sawElement      bool

		capturingName   bool
		nameBuf         strings.Builder
		nameIsDirect    bool
		capturingCoords bool
		coordsBuf       strings.Builder
		coordsKind      string
		coordsToPm      bool
	)

	currentPm := func() *placemarkContext {
		if len(pmStack) == 0 {
			return nil
		}
		return pmStack[len(pmStack)-1]
	}

	// closePlacemark resolves the display name, backfills it onto nodes
	// emitted while the placemark was open, and in point mode emits the
	// placemark's single node.
	closePlacemark := func(pm *placemarkContext) {
		name := pm.displayName()
		for i := pm.nodeStart; i < len(nodes); i++ {
			if nodes[i].Name == "" {
				nodes[i].Name = name
			}
		}
		if mode == ModePlacemarkPoint && pm.haveCoords {
			nodes = append(nodes, GeometryNode{Kind: KindPoint, Name: name, Raw: pm.coords})
		}
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !sawElement {
				return nil, fmt.Errorf("%w: %v", ErrXMLParse, err)
			}
			slog.Warn("kml document broken mid-stream, keeping salvaged geometry",
				"error", err, "nodes", len(nodes))
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawElement = true
			depth++

			switch {
			case isKMLName(t.Name, "Placemark"):
				pmStack = append(pmStack, &placemarkContext{depth: depth, nodeStart: len(nodes)})

			case isKMLName(t.Name, "LineString"):
				lineStringDepth++

			case isKMLName(t.Name, "Point"):
				pointDepth++

			case isKMLName(t.Name, "name"):
				if pm := currentPm(); pm != nil && !capturingName {
					capturingName = true
					nameIsDirect = depth == pm.depth+1
					nameBuf.Reset()
				}

			case isKMLName(t.Name, "coordinates"):
				if capturingCoords {
					break
				}
				switch mode {
				case ModeAnyCoordinates:
					capturingCoords = true
					coordsToPm = false
					coordsKind = KindGeneric
					if lineStringDepth > 0 {
						coordsKind = KindLineString
					} else if pointDepth > 0 {
						coordsKind = KindPoint
					}
				case ModeLineString:
					if lineStringDepth > 0 {
						capturingCoords = true
						coordsToPm = false
						coordsKind = KindLineString
					}
				case ModePlacemarkPoint:
					pm := currentPm()
					if pointDepth > 0 && pm != nil && !pm.haveCoords {
						capturingCoords = true
						coordsToPm = true
					}
				}
				if capturingCoords {
					coordsBuf.Reset()
				}
			}

		case xml.EndElement:
			switch {
			case isKMLName(t.Name, "Placemark"):
				if pm := currentPm(); pm != nil {
					closePlacemark(pm)
					pmStack = pmStack[:len(pmStack)-1]
				}

			case isKMLName(t.Name, "LineString"):
				if lineStringDepth > 0 {
					lineStringDepth--
				}

			case isKMLName(t.Name, "Point"):
				if pointDepth > 0 {
					pointDepth--
				}

			case isKMLName(t.Name, "name"):
				if capturingName {
					capturingName = false
					if pm := currentPm(); pm != nil {
						text := nameBuf.String()
						if nameIsDirect && !pm.haveDirect {
							pm.directName = text
							pm.haveDirect = true
						} else if !nameIsDirect && !pm.haveAny {
							pm.anyName = text
							pm.haveAny = true
						}
					}
				}

			case isKMLName(t.Name, "coordinates"):
				if capturingCoords {
					capturingCoords = false
					if coordsToPm {
						if pm := currentPm(); pm != nil {
							pm.coords = coordsBuf.String()
							pm.haveCoords = true
						}
					} else {
						nodes = append(nodes, GeometryNode{Kind: coordsKind, Raw: coordsBuf.String()})
					}
				}
			}
			if depth > 0 {
				depth--
			}

		case xml.CharData:
			if capturingName {
				nameBuf.Write(t)
			}
			if capturingCoords {
				coordsBuf.Write(t)
			}
		}
	}

	if !sawElement {
		return nil, ErrXMLParse
	}

	// A truncated document can end with placemarks still open; close them
	// so their names and point coordinates are not lost.
	for i := len(pmStack) - 1; i >= 0; i-- {
		closePlacemark(pmStack[i])
	}

	slog.Debug("geometry extracted", "mode", mode.String(), "nodes", len(nodes))
	return nodes, nil
}
