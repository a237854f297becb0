package domain

import (
	"maps"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// cloneStringMap creates a copy of a string map to prevent aliasing.
// Returns nil for nil input to maintain consistency.
func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	result := make(map[string]string, len(m))
	maps.Copy(result, m)
	return result
}

// CloneWeights copies a criterion weight map so callers can perturb it freely.
func CloneWeights(w map[string]float64) map[string]float64 {
	if w == nil {
		return nil
	}
	result := make(map[string]float64, len(w))
	maps.Copy(result, w)
	return result
}
