package centerline

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// BuildBundle packs artifacts into a single zip for one-click download,
// each stored under its literal filename, input order preserved.
func BuildBundle(artifacts []Artifact) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, a := range artifacts {
		f, err := w.Create(a.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to bundle: %w", a.Name, err)
		}
		if _, err := f.Write(a.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s to bundle: %w", a.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize bundle: %w", err)
	}

	return buf.Bytes(), nil
}
