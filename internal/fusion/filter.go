package fusion

import (
	"errors"
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

const (
	stateDim = 12

	// initialVariance seeds every diagonal entry of P at construction.
	initialVariance = 0.1

	// velocityProcessNoise is the per-tick process noise on each
	// velocity state; pose states receive none.
	velocityProcessNoise = 0.001

	// wheelYawRateNoiseScale inflates the reported yaw rate variance.
	// Tuned against the production wheel odometry firmware.
	wheelYawRateNoiseScale = 100
)

// stateAngleRows are the angle components of the state vector.
var stateAngleRows = []int{3, 4, 5}

// Correction failures that leave the state as predicted for this tick.
var (
	ErrSingularInnovation = errors.New("innovation covariance not invertible")
	ErrGimbalLock         = errors.New("pitch inside gimbal band")
)

// Diagnostics counts degraded-path events. Counters are atomic so the
// monitor can read them while the scheduler runs.
type Diagnostics struct {
	SingularInertial atomic.Uint64
	SingularWheel    atomic.Uint64
	SingularRange    atomic.Uint64
	GimbalClamps     atomic.Uint64
	GimbalRejects    atomic.Uint64
}

// Snapshot returns a plain copy of the counters.
func (d *Diagnostics) Snapshot() DiagnosticCounts {
	return DiagnosticCounts{
		SingularInertial: d.SingularInertial.Load(),
		SingularWheel:    d.SingularWheel.Load(),
		SingularRange:    d.SingularRange.Load(),
		GimbalClamps:     d.GimbalClamps.Load(),
		GimbalRejects:    d.GimbalRejects.Load(),
	}
}

// DiagnosticCounts is the JSON-friendly form of Diagnostics.
type DiagnosticCounts struct {
	SingularInertial uint64 `json:"singular_inertial"`
	SingularWheel    uint64 `json:"singular_wheel"`
	SingularRange    uint64 `json:"singular_range"`
	GimbalClamps     uint64 `json:"gimbal_clamps"`
	GimbalRejects    uint64 `json:"gimbal_rejects"`
}

// Filter is the 12-state extended Kalman filter. It is owned by the
// scheduler goroutine and is not safe for concurrent use; concurrent
// observers read published estimates or the Diagnostics counters
// instead.
type Filter struct {
	params Params

	x []float64  // 12: world pose then body velocity
	p *mat.Dense // 12x12 state covariance

	qPred *mat.Dense

	// Previous range scan retained for the twist derivation.
	prevRangePose [6]float64
	prevRangeCov  [6]float64
	hasPrevRange  bool

	diag Diagnostics
}

// NewFilter constructs a filter at the origin with the fixed initial
// covariance.
func NewFilter(params Params) *Filter {
	p := mat.NewDense(stateDim, stateDim, nil)
	q := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		p.Set(i, i, initialVariance)
		if i >= 6 {
			q.Set(i, i, velocityProcessNoise)
		}
	}
	return &Filter{
		params: params,
		x:      make([]float64, stateDim),
		p:      p,
		qPred:  q,
	}
}

// Predict advances state and covariance by dt seconds of the
// constant-velocity motion model. Runs every tick; dt comes from the
// scheduler's wall clock, not from sensor timestamps.
func (f *Filter) Predict(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if NearGimbalLock(f.x[4], f.params.GimbalMargin) {
		f.diag.GimbalClamps.Add(1)
		diagf("prediction: pitch %.4f inside gimbal band, clamping", f.x[4])
	}

	model := func(out, in []float64) { f.motionModel(out, in, dt) }

	// Linearize at the pre-update state, then advance it.
	jac := NumericJacobian(model, f.x, stateDim, predictionJacobianStep, stateAngleRows)
	next := make([]float64, stateDim)
	model(next, f.x)
	copy(f.x, next)

	var fp, fpf mat.Dense
	fp.Mul(jac, f.p)
	fpf.Mul(&fp, jac.T())
	fpf.Add(&fpf, f.qPred)
	f.p.Copy(&fpf)
}

// motionModel advances the pose by rotating body velocity into the
// world frame; velocity states carry over unchanged. Pitch is clamped
// out of the gimbal band so the Euler rate terms stay finite.
func (f *Filter) motionModel(out, in []float64, dt float64) {
	roll, yaw := in[3], in[5]
	pitch, _ := ClampPitch(in[4], f.params.GimbalMargin)

	r := RotationZYX(roll, pitch, yaw)
	j := EulerRateMatrix(roll, pitch)

	var pv, wv mat.VecDense
	pv.MulVec(r, mat.NewVecDense(3, in[6:9]))
	wv.MulVec(j, mat.NewVecDense(3, in[9:12]))

	for i := 0; i < 3; i++ {
		out[i] = in[i] + pv.AtVec(i)*dt
		out[3+i] = in[3+i] + wv.AtVec(i)*dt
	}
	copy(out[6:], in[6:])
}

// CorrectWheel fuses forward velocity and yaw rate, observed directly
// on states 6 and 11.
func (f *Filter) CorrectWheel(m WheelMeasurement) error {
	h := mat.NewDense(2, stateDim, nil)
	h.Set(0, 6, 1)
	h.Set(1, 11, 1)

	r := mat.NewDense(2, 2, nil)
	r.Set(0, 0, f.params.WheelGain*m.ForwardVar)
	r.Set(1, 1, wheelYawRateNoiseScale*m.YawRateVar)

	if err := f.linearUpdate(h, []float64{m.Forward, m.YawRate}, r, nil); err != nil {
		f.diag.SingularWheel.Add(1)
		return fmt.Errorf("wheel correction: %w", err)
	}
	return nil
}

// CorrectInertial fuses the orientation angles, observed directly on
// states 3..5. The angle innovation is wrapped per axis; the
// orientation covariance block is scaled by the inertial gain.
func (f *Filter) CorrectInertial(m InertialMeasurement) error {
	h := mat.NewDense(3, stateDim, nil)
	for i := 0; i < 3; i++ {
		h.Set(i, 3+i, 1)
	}

	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, f.params.InertialGain*m.AngleCov[3*i+j])
		}
	}

	if err := f.linearUpdate(h, m.Angles[:], r, []int{0, 1, 2}); err != nil {
		f.diag.SingularInertial.Add(1)
		return fmt.Errorf("inertial correction: %w", err)
	}
	return nil
}

// CorrectRange fuses a scan-matched absolute pose by converting the
// delta against the retained previous pose into a synthetic body
// twist, observed on states 6..11. The first scan only primes the
// retained pose. When emit is non-nil it receives the derived twist
// and its propagated covariance before the update is applied.
func (f *Filter) CorrectRange(m RangeMeasurement, emit func(DerivedTwist)) error {
	cov := f.params.Adaptive.Covariance(m.CornerFeatures, m.SurfFeatures, f.params.RangeGain)

	if !f.hasPrevRange {
		f.prevRangePose = m.Pose
		f.prevRangeCov = cov
		f.hasPrevRange = true
		tracef("range correction primed, waiting for second scan")
		return nil
	}

	prevPose, prevCov := f.prevRangePose, f.prevRangeCov
	f.prevRangePose = m.Pose
	f.prevRangeCov = cov

	// A pose endpoint inside the gimbal band makes the derived angular
	// rates garbage; reject rather than corrupt the velocity states.
	if NearGimbalLock(m.Pose[4], f.params.GimbalMargin) ||
		NearGimbalLock(prevPose[4], f.params.GimbalMargin) {
		f.diag.GimbalRejects.Add(1)
		return fmt.Errorf("range correction: %w", ErrGimbalLock)
	}

	dt := f.params.RangePeriod
	twist := DeriveTwist(m.Pose, prevPose, dt)
	q := deriveTwistCovariance(m.Pose, prevPose, dt, cov, prevCov)

	if emit != nil {
		var d DerivedTwist
		d.Time = m.Time
		d.Twist = twist
		copyCov36(&d.Cov, q)
		emit(d)
	}

	h := mat.NewDense(6, stateDim, nil)
	for i := 0; i < 6; i++ {
		h.Set(i, 6+i, 1)
	}

	if err := f.linearUpdate(h, twist[:], q, nil); err != nil {
		f.diag.SingularRange.Add(1)
		return fmt.Errorf("range correction: %w", err)
	}
	return nil
}

// linearUpdate applies one Kalman correction with observation matrix h
// (m x 12), measurement z and noise r. Innovation rows listed in
// wrapRows are angle differences and get wrapped. The covariance
// update uses the Joseph form, which keeps P symmetric under repeated
// corrections. Returns ErrSingularInnovation when S = HPH^T + R cannot
// be factorized.
func (f *Filter) linearUpdate(h *mat.Dense, z []float64, r mat.Matrix, wrapRows []int) error {
	m, _ := h.Dims()

	var hx mat.VecDense
	hx.MulVec(h, mat.NewVecDense(stateDim, f.x))
	y := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		y.SetVec(i, z[i]-hx.AtVec(i))
	}
	for _, i := range wrapRows {
		y.SetVec(i, WrapAngle(y.AtVec(i)))
	}

	var ph, s mat.Dense
	ph.Mul(f.p, h.T())
	s.Mul(h, &ph)
	s.Add(&s, r)

	var chol mat.Cholesky
	if ok := chol.Factorize(symmetrize(&s)); !ok {
		return ErrSingularInnovation
	}

	// K = P H^T S^-1, via S K^T = (P H^T)^T.
	var kt mat.Dense
	if err := chol.SolveTo(&kt, ph.T()); err != nil {
		return ErrSingularInnovation
	}
	k := kt.T()

	var dx mat.VecDense
	dx.MulVec(k, y)
	for i := range f.x {
		f.x[i] += dx.AtVec(i)
	}

	var kh, ikh mat.Dense
	kh.Mul(k, h)
	ikh.Sub(identity(stateDim), &kh)

	var ipa, ipb, kr, krk mat.Dense
	ipa.Mul(&ikh, f.p)
	ipb.Mul(&ipa, ikh.T())
	kr.Mul(k, r)
	krk.Mul(&kr, k.T())
	ipb.Add(&ipb, &krk)
	f.p.Copy(&ipb)
	return nil
}

// State returns a copy of the state vector.
func (f *Filter) State() [stateDim]float64 {
	var out [stateDim]float64
	copy(out[:], f.x)
	return out
}

// Covariance returns a copy of the state covariance.
func (f *Filter) Covariance() *mat.Dense {
	out := mat.NewDense(stateDim, stateDim, nil)
	out.Copy(f.p)
	return out
}

// Diagnostics exposes the degraded-path counters.
func (f *Filter) Diagnostics() *Diagnostics {
	return &f.diag
}

// identity returns an n x n identity matrix.
func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// symmetrize copies a nearly-symmetric matrix into SymDense form,
// averaging the off-diagonal pairs.
func symmetrize(a *mat.Dense) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}
