// Package stability measures how much cached feature values move when the
// delineation or the quantization changes.
//
// Variation within a group of values is the mean pairwise symmetric absolute
// percentage error (SMAPE, 0 to 200 %). Population variation is the mean over
// nodules. Agreement maps SMAPE onto [0, 1] and is graded on the Koo & Li
// (2016) reliability bands.
package stability

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/store"
)

// Grade labels.
const (
	Poor      = "poor"
	Moderate  = "moderate"
	Good      = "good"
	Excellent = "excellent"
)

// ErrTooFewValues is returned when fewer than two values are compared.
var ErrTooFewValues = errors.New("need at least two values")

// SMAPE returns the mean pairwise symmetric absolute percentage error of
// values. A pair of zeros contributes 0.
func SMAPE(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, ErrTooFewValues
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			a, b := values[i], values[j]
			if d := math.Abs(a) + math.Abs(b); d > 0 {
				sum += 200 * math.Abs(a-b) / d
			}
			pairs++
		}
	}
	return sum / float64(pairs), nil
}

// Agreement maps a SMAPE percentage onto [0, 1], 1 meaning identical values.
func Agreement(smape float64) float64 {
	return math.Min(1, math.Max(0, 1-smape/200))
}

// Grade labels a reliability score in [0, 1].
func Grade(score float64) (string, error) {
	switch {
	case math.IsNaN(score) || score < 0 || score > 1:
		return "", fmt.Errorf("score %v not in [0, 1]", score)
	case score < 0.5:
		return Poor, nil
	case score < 0.75:
		return Moderate, nil
	case score <= 0.9:
		return Good, nil
	default:
		return Excellent, nil
	}
}

// Source is the read-only store surface the analyses need.
// *store.Store satisfies it.
type Source interface {
	PatientIDs(ctx context.Context) ([]string, error)
	NoduleIDs(ctx context.Context, patientID string) ([]int, error)
	AnnotationIDs(ctx context.Context, patientID string, noduleID int) ([]int, error)
	FeatureIDs() []model.FeatureID
	ValuesAcrossAnnotations(ctx context.Context, patientID string, noduleID int, id model.FeatureID, numLevels int, noiseScale float64) ([]store.Sample, error)
	ConsensusValue(ctx context.Context, patientID string, noduleID int, id model.FeatureID, numLevels int, noiseScale float64) (float64, bool, error)
}

// Row is the result for one feature.
type Row struct {
	Feature   model.FeatureID
	Nodules   int
	AvgSMAPE  float64
	Agreement float64
	Stability string
}

type nodule struct {
	patient string
	id      int
}

func nodules(ctx context.Context, src Source) ([]nodule, error) {
	patients, err := src.PatientIDs(ctx)
	if err != nil {
		return nil, err
	}
	var out []nodule
	for _, p := range patients {
		ids, err := src.NoduleIDs(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, n := range ids {
			out = append(out, nodule{p, n})
		}
	}
	return out, nil
}

// Delineation measures variation across observers. Only nodules with exactly
// annotations observer rows take part, and a nodule is skipped for a feature
// when any of its observer values is absent. Features with no usable nodule
// are left out.
func Delineation(ctx context.Context, src Source, annotations, numLevels int, noiseScale float64) ([]Row, error) {
	if annotations < 2 {
		return nil, fmt.Errorf("delineation: %d annotations: %w", annotations, ErrTooFewValues)
	}
	all, err := nodules(ctx, src)
	if err != nil {
		return nil, err
	}
	var selected []nodule
	for _, n := range all {
		ids, err := src.AnnotationIDs(ctx, n.patient, n.id)
		if err != nil {
			return nil, err
		}
		if len(ids) == annotations {
			selected = append(selected, n)
		}
	}

	return perFeature(src.FeatureIDs(), func(id model.FeatureID) ([]float64, error) {
		var out []float64
		for _, n := range selected {
			samples, err := src.ValuesAcrossAnnotations(ctx, n.patient, n.id, id, numLevels, noiseScale)
			if err != nil {
				return nil, err
			}
			values, ok := presentValues(samples)
			if !ok || len(values) != annotations {
				continue
			}
			s, err := SMAPE(values)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	})
}

// Resampling measures variation of the consensus value across level counts.
// A nodule is skipped for a feature when any level's value is absent.
func Resampling(ctx context.Context, src Source, levels []int, noiseScale float64) ([]Row, error) {
	if len(levels) < 2 {
		return nil, fmt.Errorf("resampling: %d level counts: %w", len(levels), ErrTooFewValues)
	}
	all, err := nodules(ctx, src)
	if err != nil {
		return nil, err
	}

	return perFeature(src.FeatureIDs(), func(id model.FeatureID) ([]float64, error) {
		var out []float64
	next:
		for _, n := range all {
			values := make([]float64, 0, len(levels))
			for _, l := range levels {
				v, ok, err := src.ConsensusValue(ctx, n.patient, n.id, id, l, noiseScale)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue next
				}
				values = append(values, v)
			}
			s, err := SMAPE(values)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	})
}

func presentValues(samples []store.Sample) ([]float64, bool) {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !s.Valid {
			return nil, false
		}
		out = append(out, s.Value)
	}
	return out, true
}

func perFeature(ids []model.FeatureID, smapes func(model.FeatureID) ([]float64, error)) ([]Row, error) {
	var rows []Row
	for _, id := range ids {
		values, err := smapes(id)
		if err != nil {
			return nil, fmt.Errorf("stability %s: %w", id, err)
		}
		if len(values) == 0 {
			continue
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		avg := sum / float64(len(values))
		agreement := Agreement(avg)
		grade, err := Grade(agreement)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Feature: id, Nodules: len(values), AvgSMAPE: avg, Agreement: agreement, Stability: grade})
	}
	return rows, nil
}

// WriteCSV writes rows with the header
// feature_class,feature_name,nodules,avg_smape,agreement,stability.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"feature_class", "feature_name", "nodules", "avg_smape", "agreement", "stability"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Feature.Class(),
			r.Feature.Name(),
			strconv.Itoa(r.Nodules),
			strconv.FormatFloat(r.AvgSMAPE, 'f', 4, 64),
			strconv.FormatFloat(r.Agreement, 'f', 4, 64),
			r.Stability,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
