package identity

import (
	"fmt"
	"math"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
)

// normalize returns a unit-length copy of v.  Empty, zero-norm, and
// non-finite vectors are rejected as invalid input.
func normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "vector is empty")
	}

	var sum float64
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("vector component %d is not finite", i))
		}
		sum += f * f
	}
	if sum == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "vector has zero norm")
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// euclidean returns the L2 distance between two vectors of equal length.
func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
