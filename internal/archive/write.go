package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/radcache/internal/volume"
)

// WritePatient stores a scan and its annotated nodules under root, replacing
// any previous manifest for the patient. nodules[n][a] is annotation a of
// nodule n; masks are written as n<n>_a<a>.nrrd.
func WritePatient(root, patientID string, scan *volume.Volume, nodules [][]volume.PlacedMask) error {
	dir := filepath.Join(root, patientID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write patient: %w", err)
	}
	if err := volume.WriteFile(filepath.Join(dir, ScanFile), scan, volume.TypeInt16); err != nil {
		return fmt.Errorf("write scan: %w", err)
	}

	var m Manifest
	for n, anns := range nodules {
		var nod Nodule
		for a, pm := range anns {
			if !pm.BBox().Within(scan.Dims) {
				return fmt.Errorf("write patient: nodule %d annotation %d outside scan", n, a)
			}
			name := fmt.Sprintf("n%d_a%d.nrrd", n, a)
			if err := volume.WriteMaskFile(filepath.Join(dir, name), pm.Mask); err != nil {
				return fmt.Errorf("write mask: %w", err)
			}
			nod.Annotations = append(nod.Annotations, Annotation{Mask: name, Offset: pm.Offset})
		}
		m.Nodules = append(m.Nodules, nod)
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
