package fusion

import "time"

// Stage identifies a pipeline stage, both on published estimates and
// as the publish trigger selector.
type Stage string

const (
	StagePrediction Stage = "prediction"
	StageInertial   Stage = "inertial"
	StageWheel      Stage = "wheel"
	StageRange      Stage = "range"
)

// ValidStage reports whether s names a known stage.
func ValidStage(s Stage) bool {
	switch s {
	case StagePrediction, StageInertial, StageWheel, StageRange:
		return true
	}
	return false
}

// Params is the immutable estimator configuration. It is constructed
// once at startup and passed by value into the filter and scheduler;
// nothing mutates it at runtime.
type Params struct {
	// Enabled gates the whole estimator loop. Per-sensor enables gate
	// the individual corrections.
	Enabled        bool
	EnableInertial bool
	EnableWheel    bool
	EnableRange    bool

	// PublishTrigger selects the stage whose completion emits an
	// estimate. StagePrediction publishes every tick; the sensor stages
	// publish only on ticks where that correction ran.
	PublishTrigger Stage

	// Covariance gain multipliers per sensor.
	RangeGain    float64
	WheelGain    float64
	InertialGain float64

	// TickInterval is the scheduler period (5ms ~ 200 Hz).
	TickInterval time.Duration

	// RangePeriod is the fixed timestep, in seconds, used to turn the
	// scan-matched pose delta into a twist. The sensor's design rate is
	// used rather than message timestamps.
	RangePeriod float64

	// GimbalMargin is the pitch distance from +-pi/2, in radians,
	// inside which the Euler rate map is treated as degenerate.
	GimbalMargin float64

	// Frame identifiers stamped onto published estimates.
	MapFrame     string
	RobotFrame   string
	DerivedFrame string

	Adaptive AdaptiveParams

	// Bias noise densities reserved for a future inertial bias
	// estimator. The 12-state filter does not consume them.
	AccelBiasNoise float64
	GyroBiasNoise  float64
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		Enabled:        true,
		EnableInertial: true,
		EnableWheel:    true,
		EnableRange:    true,
		PublishTrigger: StageRange,
		RangeGain:      1000,
		WheelGain:      0.05,
		InertialGain:   0.1,
		TickInterval:   5 * time.Millisecond,
		RangePeriod:    0.1,
		GimbalMargin:   0.01,
		MapFrame:       "chassis_init",
		RobotFrame:     "ekf_odom_frame",
		DerivedFrame:   "ind_lidar_frame",
		Adaptive:       DefaultAdaptiveParams(),
		AccelBiasNoise: 1e-4,
		GyroBiasNoise:  1e-8,
	}
}
