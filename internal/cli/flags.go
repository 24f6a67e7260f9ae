package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/radcache/internal/model"
)

// keyFlags binds the condition key flags shared by get and inspect.
type keyFlags struct {
	Patient    string
	Nodule     int
	Annotation int
	Levels     int
	Noise      float64
}

func (k *keyFlags) register(cmd *cobra.Command, withAnnotation bool) {
	cmd.Flags().StringVar(&k.Patient, "patient", "", "patient id (required)")
	_ = cmd.MarkFlagRequired("patient")
	cmd.Flags().IntVar(&k.Nodule, "nodule", 0, "nodule id")
	if withAnnotation {
		cmd.Flags().IntVar(&k.Annotation, "annotation", model.ConsensusAnnotation, "annotation id (-1 for consensus)")
	}
	cmd.Flags().IntVar(&k.Levels, "levels", 256, "number of quantization levels")
	cmd.Flags().Float64Var(&k.Noise, "noise", 0, "noise scale")
}

func (k *keyFlags) key() model.ConditionKey {
	return model.ConditionKey{
		PatientID:    k.Patient,
		NoduleID:     k.Nodule,
		AnnotationID: k.Annotation,
		NumLevels:    k.Levels,
		NoiseScale:   k.Noise,
	}
}
