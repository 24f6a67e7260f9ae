package store

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/roach88/radcache/internal/model"
)

func TestWriteValue_Basic(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Entropy")
	key := testKey(1, 0, 128, 0.05)

	if err := s.WriteValue(ctx, key, "firstorder/Entropy", 0.01); err != nil {
		t.Fatalf("WriteValue() failed: %v", err)
	}

	var patient string
	var entropy float64
	err := s.db.QueryRow("SELECT patient_id, firstorder_Entropy FROM features").Scan(&patient, &entropy)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if patient != "AA-00" || entropy != 0.01 {
		t.Errorf("stored (%q, %v), want (AA-00, 0.01)", patient, entropy)
	}
}

func TestWriteValue_OverwriteKeepsOtherSlots(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Entropy", "firstorder/Kurtosis")
	key := testKey(1, 0, 128, 0.05)

	if err := s.WriteValue(ctx, key, "firstorder/Entropy", 0.01); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteValue(ctx, key, "firstorder/Kurtosis", 0.02); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteValue(ctx, key, "firstorder/Entropy", 0.5); err != nil {
		t.Fatal(err)
	}

	v, ok, err := s.ReadValue(ctx, key, "firstorder/Entropy")
	if err != nil || !ok || v != 0.5 {
		t.Errorf("Entropy = %v, %v, %v; want 0.5", v, ok, err)
	}
	v, ok, err = s.ReadValue(ctx, key, "firstorder/Kurtosis")
	if err != nil || !ok || v != 0.02 {
		t.Errorf("Kurtosis = %v, %v, %v; want 0.02 unchanged", v, ok, err)
	}
}

func TestWriteValue_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Entropy")
	key := testKey(1, 0, 128, 0.05)

	for i := 0; i < 3; i++ {
		if err := s.WriteValue(ctx, key, "firstorder/Entropy", 0.01); err != nil {
			t.Fatalf("WriteValue() iteration %d failed: %v", i, err)
		}
	}

	if n := countRows(t, s, key); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	v, ok, _ := s.ReadValue(ctx, key, "firstorder/Entropy")
	if !ok || v != 0.01 {
		t.Errorf("ReadValue() = %v, %v", v, ok)
	}
}

func TestWriteValue_Uniqueness(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Entropy", "firstorder/Kurtosis")
	key := model.ConditionKey{PatientID: "P1", NoduleID: 1, AnnotationID: 0, NumLevels: 128, NoiseScale: 0.05}

	writes := []struct {
		id    model.FeatureID
		value float64
	}{
		{"firstorder/Entropy", 1},
		{"firstorder/Kurtosis", 2},
		{"glcm/Contrast", 3},
		{"firstorder/Entropy", 4},
		{"firstorder/Kurtosis", 2},
	}
	for _, w := range writes {
		if err := s.WriteValue(ctx, key, w.id, w.value); err != nil {
			t.Fatalf("WriteValue(%s) failed: %v", w.id, err)
		}
		if n := countRows(t, s, key); n != 1 {
			t.Fatalf("after writing %s: rows = %d, want 1", w.id, n)
		}
	}
}

func TestWriteValue_SchemaGrowth(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Entropy")
	old := testKey(1, 0, 128, 0.05)
	if err := s.WriteValue(ctx, old, "firstorder/Entropy", 0.01); err != nil {
		t.Fatal(err)
	}

	if s.HasFeature("gldm/SDE") {
		t.Fatal("gldm/SDE should not be known yet")
	}
	fresh := testKey(2, 0, 128, 0.05)
	if err := s.WriteValue(ctx, fresh, "gldm/SDE", 7); err != nil {
		t.Fatalf("WriteValue() of unknown feature failed: %v", err)
	}

	found := false
	for _, id := range s.FeatureIDs() {
		if id == "gldm/SDE" {
			found = true
		}
	}
	if !found {
		t.Errorf("FeatureIDs() = %v, missing gldm/SDE", s.FeatureIDs())
	}

	if _, ok, err := s.ReadValue(ctx, old, "gldm/SDE"); err != nil || ok {
		t.Errorf("pre-existing row should be absent for new feature, got ok=%v err=%v", ok, err)
	}
	if v, ok, _ := s.ReadValue(ctx, fresh, "gldm/SDE"); !ok || v != 7 {
		t.Errorf("ReadValue() = %v, %v; want 7", v, ok)
	}
}

func TestWriteValue_ZeroIsNotAbsent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Min")
	key := testKey(1, 0, 64, 0)

	if err := s.WriteValue(ctx, key, "firstorder/Min", 0); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.ReadValue(ctx, key, "firstorder/Min")
	if err != nil || !ok || v != 0 {
		t.Errorf("ReadValue() = %v, %v, %v; want 0, true, nil", v, ok, err)
	}
}

func TestWriteValue_NormalizesPatientID(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Mean")

	k1 := model.ConditionKey{PatientID: " Jose\u0301", NoduleID: 0, AnnotationID: 0, NumLevels: 32}
	k2 := model.ConditionKey{PatientID: "Jos\u00e9", NoduleID: 0, AnnotationID: 0, NumLevels: 32}

	if err := s.WriteValue(ctx, k1, "firstorder/Mean", 3); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.ReadValue(ctx, k2, "firstorder/Mean")
	if err != nil || !ok || v != 3 {
		t.Errorf("ReadValue() = %v, %v, %v; want 3", v, ok, err)
	}
}

func TestWriteValue_RejectsNaN(t *testing.T) {
	s := createTestStore(t, "firstorder/Mean")
	err := s.WriteValue(context.Background(), testKey(0, 0, 32, 0), "firstorder/Mean", math.NaN())
	if !errors.Is(err, ErrNaN) {
		t.Fatalf("expected ErrNaN, got %v", err)
	}
}

func TestWriteValue_InfinityRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "firstorder/Mean")
	key := testKey(0, 0, 32, 0)

	if err := s.WriteValue(ctx, key, "firstorder/Mean", math.Inf(1)); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.ReadValue(ctx, key, "firstorder/Mean")
	if err != nil || !ok || !math.IsInf(v, 1) {
		t.Errorf("ReadValue() = %v, %v, %v; want +Inf", v, ok, err)
	}
}

func TestWriteValue_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	err := s.WriteValue(ctx, testKey(0, 0, 1, 0), "firstorder/Mean", 1)
	if !errors.Is(err, model.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}

	if err := s.WriteValue(ctx, testKey(0, 0, 32, 0), "drop table", 1); err == nil {
		t.Error("expected error for malformed identifier")
	}
	if len(s.FeatureIDs()) != 0 {
		t.Errorf("schema changed after rejected writes: %v", s.FeatureIDs())
	}
}
