package extract

import (
	"errors"
	"fmt"

	"github.com/roach88/radcache/internal/model"
)

// Stage identifies where an extraction failed.
type Stage string

const (
	// StageRegion covers loading the scan and annotation.
	StageRegion Stage = "REGION"

	// StagePreprocess covers windowing, quantization, and noise.
	StagePreprocess Stage = "PREPROCESS"

	// StageWorkFiles covers writing the NRRD working files.
	StageWorkFiles Stage = "WORK_FILES"

	// StageEngine covers the engine invocation itself.
	StageEngine Stage = "ENGINE"

	// StageResult covers mapping engine output back to identifiers.
	StageResult Stage = "RESULT"
)

// ExtractionError reports a failed computation for one condition.
type ExtractionError struct {
	Stage   Stage
	Key     model.ConditionKey
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction %s: %s %s", e.Stage, e.Key, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionError returns true if err is or wraps an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

func failure(stage Stage, key model.ConditionKey, err error, format string, args ...any) *ExtractionError {
	return &ExtractionError{Stage: stage, Key: key, Message: fmt.Sprintf(format, args...), Err: err}
}
