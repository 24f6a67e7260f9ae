package model

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ConsensusAnnotation is the reserved annotation id selecting the fused
// 50% consensus delineation of a nodule.
const ConsensusAnnotation = -1

// ErrInvalidKey is returned when a ConditionKey field is out of range.
var ErrInvalidKey = errors.New("invalid condition key")

// ConditionKey identifies one experimental condition under which a feature
// value is computed. Two keys are equal iff all five fields are equal.
type ConditionKey struct {
	PatientID    string  `json:"patient_id" yaml:"patient_id"`
	NoduleID     int     `json:"nodule_id" yaml:"nodule_id"`
	AnnotationID int     `json:"annotation_id" yaml:"annotation_id"`
	NumLevels    int     `json:"num_levels" yaml:"num_levels"`
	NoiseScale   float64 `json:"noise_scale" yaml:"noise_scale"`
}

// Validate reports whether every field is in its allowed range.
// The returned error wraps ErrInvalidKey.
func (k ConditionKey) Validate() error {
	switch {
	case strings.TrimSpace(k.PatientID) == "":
		return fmt.Errorf("%w: empty patient id", ErrInvalidKey)
	case k.NoduleID < 0:
		return fmt.Errorf("%w: nodule id %d < 0", ErrInvalidKey, k.NoduleID)
	case k.AnnotationID < ConsensusAnnotation:
		return fmt.Errorf("%w: annotation id %d < %d", ErrInvalidKey, k.AnnotationID, ConsensusAnnotation)
	case k.NumLevels <= 1:
		return fmt.Errorf("%w: num levels %d <= 1", ErrInvalidKey, k.NumLevels)
	case math.IsNaN(k.NoiseScale) || math.IsInf(k.NoiseScale, 0) || k.NoiseScale < 0:
		return fmt.Errorf("%w: noise scale %v", ErrInvalidKey, k.NoiseScale)
	}
	return nil
}

// Normalize returns a copy of k with the patient id trimmed and NFC-normalized,
// so that visually identical ids select the same stored row.
func (k ConditionKey) Normalize() ConditionKey {
	k.PatientID = NormalizePatientID(k.PatientID)
	return k
}

// IsConsensus reports whether k selects the consensus delineation.
func (k ConditionKey) IsConsensus() bool {
	return k.AnnotationID == ConsensusAnnotation
}

// String renders k for logs and error messages.
func (k ConditionKey) String() string {
	return fmt.Sprintf("(%s, %d, %d, %d, %g)",
		k.PatientID, k.NoduleID, k.AnnotationID, k.NumLevels, k.NoiseScale)
}

// NormalizePatientID trims surrounding whitespace and applies Unicode NFC.
func NormalizePatientID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}
