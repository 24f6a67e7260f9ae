package feature

import (
	"errors"
	"fmt"

	"github.com/roach88/radcache/internal/model"
)

// InvalidFeatureError reports an identifier that is not in the registry.
type InvalidFeatureError struct {
	ID model.FeatureID
}

// Error implements the error interface.
func (e *InvalidFeatureError) Error() string {
	return fmt.Sprintf("invalid feature %q: not in the feature lookup table", string(e.ID))
}

// IsInvalidFeature returns true if err is or wraps an InvalidFeatureError.
func IsInvalidFeature(err error) bool {
	var fe *InvalidFeatureError
	return errors.As(err, &fe)
}
