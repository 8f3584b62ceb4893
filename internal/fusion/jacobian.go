package fusion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Perturbation step sizes for the two numeric linearizations. The
// motion model tolerates a coarse step; the twist derivation is far
// more sensitive and needs a fine one. These are call-site choices,
// not universal constants.
const (
	predictionJacobianStep = 1e-4
	rangeJacobianStep      = 1e-7
)

// VectorFunc evaluates a vector-valued function, writing the result
// into out. Implementations must not retain or modify in.
type VectorFunc func(out, in []float64)

// NumericJacobian computes the forward-difference Jacobian of f at
// base: column j is (f(base + step*e_j) - f(base)) / step.
//
// Rows listed in angleRows hold angles; their entries are formed as
// sin(delta)/step instead of delta/step so a wrap seam between the two
// evaluations does not produce a spurious ~2*pi/step derivative. step
// must be positive.
func NumericJacobian(f VectorFunc, base []float64, outDim int, step float64, angleRows []int) *mat.Dense {
	isAngle := make([]bool, outDim)
	for _, r := range angleRows {
		isAngle[r] = true
	}

	f0 := make([]float64, outDim)
	f1 := make([]float64, outDim)
	in := make([]float64, len(base))
	copy(in, base)
	f(f0, in)

	jac := mat.NewDense(outDim, len(base), nil)
	for j := range base {
		in[j] = base[j] + step
		f(f1, in)
		in[j] = base[j]

		for i := 0; i < outDim; i++ {
			d := f1[i] - f0[i]
			if isAngle[i] {
				jac.Set(i, j, math.Sin(d)/step)
			} else {
				jac.Set(i, j, d/step)
			}
		}
	}
	return jac
}
