package fusion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State angles are unconstrained reals; only angle differences are
// wrapped. WrapAngle normalises a difference into (-pi, pi].
func WrapAngle(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}

// RotationZYX returns the body-to-world rotation matrix composed as
// Rz(yaw)*Ry(pitch)*Rx(roll).
func RotationZYX(roll, pitch, yaw float64) *mat.Dense {
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	sy, cy := math.Sincos(yaw)

	return mat.NewDense(3, 3, []float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr,
		-sp, cp * sr, cp * cr,
	})
}

// EulerRateMatrix maps body angular rates to Euler angle rates:
// (roll', pitch', yaw') = J * (wx, wy, wz). Singular at pitch = +-pi/2;
// callers must keep pitch outside the gimbal band (see ClampPitch).
func EulerRateMatrix(roll, pitch float64) *mat.Dense {
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	tp := sp / cp

	return mat.NewDense(3, 3, []float64{
		1, sr * tp, cr * tp,
		0, cr, -sr,
		0, sr / cp, cr / cp,
	})
}

// EulerRateInverse maps Euler angle rates back to body angular rates.
// Closed form of EulerRateMatrix's inverse; well defined everywhere but
// loses rank at pitch = +-pi/2 like the forward map.
func EulerRateInverse(roll, pitch float64) *mat.Dense {
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)

	return mat.NewDense(3, 3, []float64{
		1, 0, -sp,
		0, cr, sr * cp,
		0, -sr, cr * cp,
	})
}

// NearGimbalLock reports whether pitch sits within margin of +-pi/2,
// where the Euler rate map degenerates.
func NearGimbalLock(pitch, margin float64) bool {
	p := math.Abs(WrapAngle(pitch))
	return math.Abs(p-math.Pi/2) < margin
}

// ClampPitch pushes a pitch angle that falls inside the gimbal band to
// the nearest band edge. Returns the (possibly unchanged) pitch and
// whether clamping occurred.
func ClampPitch(pitch, margin float64) (float64, bool) {
	w := WrapAngle(pitch)
	for _, pole := range []float64{math.Pi / 2, -math.Pi / 2} {
		d := w - pole
		if math.Abs(d) < margin {
			if d < 0 {
				return pole - margin, true
			}
			return pole + margin, true
		}
	}
	return pitch, false
}
