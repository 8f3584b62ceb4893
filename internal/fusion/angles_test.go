package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestWrapAngle(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"small positive", 0.5, 0.5},
		{"small negative", -0.5, -0.5},
		{"three half pi", 3 * math.Pi / 2, -math.Pi / 2},
		{"negative three half pi", -3 * math.Pi / 2, math.Pi / 2},
		{"full turn", 2 * math.Pi, 0},
		{"two full turns plus", 4*math.Pi + 0.25, 0.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, WrapAngle(tc.in), 1e-12)
		})
	}
}

// A 359 degree heading and a 1 degree heading are two degrees apart,
// not 358.
func TestWrapAngleDifferenceAcrossSeam(t *testing.T) {
	t.Parallel()

	a := 359.0 * math.Pi / 180
	b := 1.0 * math.Pi / 180
	diff := WrapAngle(a - b)
	assert.InDelta(t, -2.0*math.Pi/180, diff, 1e-12)
}

func TestRotationZYXIdentityAtZero(t *testing.T) {
	t.Parallel()

	r := RotationZYX(0, 0, 0)
	want := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	assert.True(t, mat.EqualApprox(r, want, 1e-12))
}

func TestRotationZYXOrthonormal(t *testing.T) {
	t.Parallel()

	r := RotationZYX(0.3, -0.7, 2.1)
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	assert.True(t, mat.EqualApprox(&rtr, identity(3), 1e-12), "R^T R should be identity")
	assert.InDelta(t, 1.0, mat.Det(r), 1e-12, "det(R) should be +1")
}

func TestRotationZYXYawQuarterTurn(t *testing.T) {
	t.Parallel()

	// Rotating the body x axis by yaw=90deg should land on world y.
	r := RotationZYX(0, 0, math.Pi/2)
	var out mat.VecDense
	out.MulVec(r, mat.NewVecDense(3, []float64{1, 0, 0}))
	assert.InDelta(t, 0, out.AtVec(0), 1e-12)
	assert.InDelta(t, 1, out.AtVec(1), 1e-12)
	assert.InDelta(t, 0, out.AtVec(2), 1e-12)
}

func TestEulerRateInverseIsInverse(t *testing.T) {
	t.Parallel()

	angles := [][2]float64{
		{0, 0},
		{0.4, 0.9},
		{-1.2, -0.6},
		{2.8, 1.2},
	}
	for _, a := range angles {
		j := EulerRateMatrix(a[0], a[1])
		ji := EulerRateInverse(a[0], a[1])
		var prod mat.Dense
		prod.Mul(j, ji)
		require.True(t, mat.EqualApprox(&prod, identity(3), 1e-9),
			"J * J^-1 != I at roll=%v pitch=%v", a[0], a[1])
	}
}

func TestNearGimbalLock(t *testing.T) {
	t.Parallel()

	assert.True(t, NearGimbalLock(math.Pi/2, 0.01))
	assert.True(t, NearGimbalLock(-math.Pi/2+0.005, 0.01))
	assert.True(t, NearGimbalLock(math.Pi/2+2*math.Pi, 0.01), "wrapped pitch should be detected")
	assert.False(t, NearGimbalLock(0, 0.01))
	assert.False(t, NearGimbalLock(math.Pi/4, 0.01))
	assert.False(t, NearGimbalLock(math.Pi, 0.01))
}

func TestClampPitch(t *testing.T) {
	t.Parallel()

	const margin = 0.01

	p, clamped := ClampPitch(0.5, margin)
	assert.False(t, clamped)
	assert.Equal(t, 0.5, p)

	p, clamped = ClampPitch(math.Pi/2-0.001, margin)
	assert.True(t, clamped)
	assert.InDelta(t, math.Pi/2-margin, p, 1e-12)

	p, clamped = ClampPitch(math.Pi/2+0.001, margin)
	assert.True(t, clamped)
	assert.InDelta(t, math.Pi/2+margin, p, 1e-12)

	p, clamped = ClampPitch(-math.Pi/2+0.002, margin)
	assert.True(t, clamped)
	assert.InDelta(t, -math.Pi/2+margin, p, 1e-12)
}
