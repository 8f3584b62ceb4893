package fusion

import "gonum.org/v1/gonum/mat"

// twistAngleRows marks the angular-rate rows of the derived twist for
// the Jacobian wrap correction.
var twistAngleRows = []int{3, 4, 5}

// DeriveTwist converts two consecutive absolute poses into the body
// twist over dt seconds. The position delta is rotated into prev's body
// frame via R(prev)^T; the per-axis wrapped angle delta is mapped
// through the inverse Euler rate matrix at prev's angles. dt must be
// positive.
func DeriveTwist(cur, prev [6]float64, dt float64) [6]float64 {
	var out [6]float64
	deriveTwist(out[:], cur[:], prev[:], dt)
	return out
}

func deriveTwist(out, cur, prev []float64, dt float64) {
	r := RotationZYX(prev[3], prev[4], prev[5])
	dp := mat.NewVecDense(3, []float64{
		cur[0] - prev[0],
		cur[1] - prev[1],
		cur[2] - prev[2],
	})
	var lin mat.VecDense
	lin.MulVec(r.T(), dp)

	da := mat.NewVecDense(3, []float64{
		WrapAngle(cur[3] - prev[3]),
		WrapAngle(cur[4] - prev[4]),
		WrapAngle(cur[5] - prev[5]),
	})
	var ang mat.VecDense
	ang.MulVec(EulerRateInverse(prev[3], prev[4]), da)

	for i := 0; i < 3; i++ {
		out[i] = lin.AtVec(i) / dt
		out[3+i] = ang.AtVec(i) / dt
	}
}

// deriveTwistCovariance propagates the adaptive pose noise of both
// endpoint scans through the twist derivation to first order:
// Q = G_cur R_cur G_cur^T + G_prev R_prev G_prev^T, with both Jacobians
// taken numerically at the fine step.
func deriveTwistCovariance(cur, prev [6]float64, dt float64, curCov, prevCov [6]float64) *mat.Dense {
	fCur := func(out, in []float64) { deriveTwist(out, in, prev[:], dt) }
	fPrev := func(out, in []float64) { deriveTwist(out, cur[:], in, dt) }

	gCur := NumericJacobian(fCur, cur[:], 6, rangeJacobianStep, twistAngleRows)
	gPrev := NumericJacobian(fPrev, prev[:], 6, rangeJacobianStep, twistAngleRows)

	rCur := mat.NewDiagDense(6, curCov[:])
	rPrev := mat.NewDiagDense(6, prevCov[:])

	var t, qCur, qPrev, q mat.Dense
	t.Mul(gCur, rCur)
	qCur.Mul(&t, gCur.T())
	t.Reset()
	t.Mul(gPrev, rPrev)
	qPrev.Mul(&t, gPrev.T())
	q.Add(&qCur, &qPrev)
	return &q
}
