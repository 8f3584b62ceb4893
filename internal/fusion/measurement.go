package fusion

import "time"

// InertialMeasurement is the staged form of one inertial sample.
// Covariance blocks are row-major 3x3. Only the orientation angles and
// their covariance are fused; acceleration and angular rate ride along
// for diagnostics and possible future use.
type InertialMeasurement struct {
	Time time.Time

	Accel       [3]float64 // m/s^2, body frame
	AngularRate [3]float64 // rad/s, body frame
	Angles      [3]float64 // roll, pitch, yaw from the orientation quaternion

	AccelCov       [9]float64
	AngularRateCov [9]float64
	AngleCov       [9]float64

	// Bias placeholders reserved for a bias-estimating filter variant.
	// Nothing reads them today.
	AccelBias [3]float64
	GyroBias  [3]float64
}

// WheelMeasurement is the staged form of one wheel odometry sample.
type WheelMeasurement struct {
	Time time.Time

	Forward float64 // vx, m/s
	YawRate float64 // wz, rad/s

	ForwardVar float64
	YawRateVar float64
}

// RangeMeasurement is the staged form of one scan-matched odometry
// sample: an absolute pose plus the scan quality counters that drive
// the adaptive noise model. No covariance arrives on the wire.
type RangeMeasurement struct {
	Time time.Time

	Pose [6]float64 // x, y, z, roll, pitch, yaw

	CornerFeatures float64
	SurfFeatures   float64
}
