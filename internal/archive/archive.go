// Package archive reads scans and observer annotations from a directory tree:
//
//	<root>/<patient>/scan.nrrd
//	<root>/<patient>/nodules.yaml
//
// nodules.yaml lists the nodules of the scan in id order, each with its
// observer annotations in id order:
//
//	nodules:
//	  - annotations:
//	      - mask: n0_a0.nrrd
//	        offset: [120, 88, 41]
//
// Each mask NRRD covers the annotation's bounding box, whose corner in scan
// voxels is offset.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/volume"
)

const (
	// ScanFile is the scan file name inside a patient directory.
	ScanFile = "scan.nrrd"

	// ManifestFile is the nodule manifest inside a patient directory.
	ManifestFile = "nodules.yaml"
)

// ErrNotFound reports a patient, nodule, or annotation missing from the archive.
var ErrNotFound = errors.New("not found in archive")

// Manifest is the decoded nodules.yaml.
type Manifest struct {
	Nodules []Nodule `yaml:"nodules"`
}

// Nodule is one nodule and its observer annotations.
type Nodule struct {
	Annotations []Annotation `yaml:"annotations"`
}

// Annotation is one observer's delineation.
type Annotation struct {
	Mask   string `yaml:"mask"`
	Offset [3]int `yaml:"offset,flow"`
}

// FS is a scan archive rooted at a directory. It implements
// extract.RegionSource and keeps the most recently loaded scan in memory.
type FS struct {
	root           string
	consensusLevel float64
	logger         *slog.Logger

	mu          sync.Mutex
	lastPatient string
	lastScan    *volume.Volume
}

// Open returns the archive rooted at dir.
func Open(dir string, logger *slog.Logger) (*FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open archive: %s is not a directory", dir)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FS{root: dir, consensusLevel: volume.DefaultConsensusLevel, logger: logger}, nil
}

// Root returns the archive directory.
func (a *FS) Root() string {
	return a.root
}

// Patients returns the ids of patient directories holding a scan, sorted.
func (a *FS) Patients() ([]string, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(a.root, e.Name(), ScanFile)); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Manifest reads the nodule manifest of a patient. A patient without a
// manifest has no nodules.
func (a *FS) Manifest(patientID string) (*Manifest, error) {
	dir, err := a.patientDir(patientID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest %s: %w", patientID, err)
	}
	for n, nod := range m.Nodules {
		for i, ann := range nod.Annotations {
			if ann.Mask == "" {
				return nil, fmt.Errorf("manifest %s: nodule %d annotation %d has no mask", patientID, n, i)
			}
		}
	}
	return &m, nil
}

// Region implements extract.RegionSource.
func (a *FS) Region(ctx context.Context, patientID string, noduleID, annotationID int) (*volume.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := a.Manifest(patientID)
	if err != nil {
		return nil, err
	}
	if noduleID < 0 || noduleID >= len(m.Nodules) {
		return nil, fmt.Errorf("%w: %s nodule %d", ErrNotFound, patientID, noduleID)
	}
	nod := m.Nodules[noduleID]

	var (
		mask *volume.Mask
		box  volume.BBox
	)
	switch {
	case annotationID == model.ConsensusAnnotation:
		if len(nod.Annotations) == 0 {
			return nil, fmt.Errorf("%w: %s nodule %d has no annotations", ErrNotFound, patientID, noduleID)
		}
		placed := make([]volume.PlacedMask, len(nod.Annotations))
		for i, ann := range nod.Annotations {
			pm, err := a.loadMask(patientID, ann)
			if err != nil {
				return nil, err
			}
			placed[i] = pm
		}
		mask, box, err = volume.Consensus(placed, a.consensusLevel)
		if err != nil {
			return nil, err
		}
	case annotationID >= 0 && annotationID < len(nod.Annotations):
		pm, err := a.loadMask(patientID, nod.Annotations[annotationID])
		if err != nil {
			return nil, err
		}
		mask, box = pm.Mask, pm.BBox()
	default:
		return nil, fmt.Errorf("%w: %s nodule %d annotation %d", ErrNotFound, patientID, noduleID, annotationID)
	}

	scan, err := a.scan(patientID)
	if err != nil {
		return nil, err
	}
	signal, err := scan.Crop(box)
	if err != nil {
		return nil, fmt.Errorf("%s nodule %d annotation %d: %w", patientID, noduleID, annotationID, err)
	}
	return &volume.Region{Signal: signal, Mask: mask, BBox: box}, nil
}

func (a *FS) loadMask(patientID string, ann Annotation) (volume.PlacedMask, error) {
	dir, err := a.patientDir(patientID)
	if err != nil {
		return volume.PlacedMask{}, err
	}
	m, err := volume.ReadMaskFile(filepath.Join(dir, ann.Mask))
	if err != nil {
		return volume.PlacedMask{}, fmt.Errorf("load mask: %w", err)
	}
	return volume.PlacedMask{Mask: m, Offset: ann.Offset}, nil
}

func (a *FS) scan(patientID string) (*volume.Volume, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastScan != nil && a.lastPatient == patientID {
		return a.lastScan, nil
	}
	dir, err := a.patientDir(patientID)
	if err != nil {
		return nil, err
	}
	v, err := volume.ReadFile(filepath.Join(dir, ScanFile))
	if err != nil {
		return nil, fmt.Errorf("load scan: %w", err)
	}
	a.logger.Debug("loaded scan", "patient", patientID, "dims", v.Dims)
	a.lastPatient, a.lastScan = patientID, v
	return v, nil
}

func (a *FS) patientDir(patientID string) (string, error) {
	if patientID == "" || patientID != filepath.Base(patientID) || patientID == "." || patientID == ".." {
		return "", fmt.Errorf("%w: bad patient id %q", ErrNotFound, patientID)
	}
	dir := filepath.Join(a.root, patientID)
	if _, err := os.Stat(filepath.Join(dir, ScanFile)); err != nil {
		return "", fmt.Errorf("%w: patient %s", ErrNotFound, patientID)
	}
	return dir, nil
}
