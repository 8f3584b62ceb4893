package fusion

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Estimate is one published filter output: the fused pose and twist
// with their covariance blocks lifted out of P. Covariances are
// row-major 6x6.
type Estimate struct {
	Time  time.Time `json:"time"`
	Stage Stage     `json:"stage"`

	Frame      string `json:"frame"`
	ChildFrame string `json:"child_frame"`

	Pose    [6]float64  `json:"pose"` // x, y, z, roll, pitch, yaw
	PoseCov [36]float64 `json:"pose_covariance"`

	Twist    [6]float64  `json:"twist"` // vx, vy, vz, wx, wy, wz
	TwistCov [36]float64 `json:"twist_covariance"`
}

// DerivedTwist is the diagnostic output of the range correction: the
// synthetic body twist derived from two consecutive scan poses and its
// propagated covariance.
type DerivedTwist struct {
	Time  time.Time   `json:"time"`
	Twist [6]float64  `json:"twist"`
	Cov   [36]float64 `json:"covariance"`
}

// Estimate snapshots the current state as a publishable estimate.
func (f *Filter) Estimate(now time.Time, stage Stage) Estimate {
	e := Estimate{
		Time:       now,
		Stage:      stage,
		Frame:      f.params.MapFrame,
		ChildFrame: f.params.RobotFrame,
	}
	copy(e.Pose[:], f.x[0:6])
	copy(e.Twist[:], f.x[6:12])
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			e.PoseCov[6*i+j] = f.p.At(i, j)
			e.TwistCov[6*i+j] = f.p.At(6+i, 6+j)
		}
	}
	return e
}

// copyCov36 flattens a 6x6 matrix into row-major array form.
func copyCov36(dst *[36]float64, src mat.Matrix) {
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			dst[6*i+j] = src.At(i, j)
		}
	}
}
