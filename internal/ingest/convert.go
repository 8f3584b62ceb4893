package ingest

import (
	"time"

	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/rosmsg"
)

// stampOr returns the header stamp, or the fallback when the
// publisher left it unset.
func stampOr(t rosmsg.Time, fallback time.Time) time.Time {
	if t.Sec == 0 && t.NanosecValue() == 0 {
		return fallback
	}
	return t.Std()
}

// InertialFromImu extracts the staged inertial measurement: the
// orientation as ZYX Euler angles plus the raw rates and their
// covariance blocks.
func InertialFromImu(m rosmsg.Imu, fallback time.Time) fusion.InertialMeasurement {
	roll, pitch, yaw := m.Orientation.Euler()
	out := fusion.InertialMeasurement{
		Time: stampOr(m.Header.Stamp, fallback),
		Accel: [3]float64{
			m.LinearAcceleration.X,
			m.LinearAcceleration.Y,
			m.LinearAcceleration.Z,
		},
		AngularRate: [3]float64{
			m.AngularVelocity.X,
			m.AngularVelocity.Y,
			m.AngularVelocity.Z,
		},
		Angles: [3]float64{roll, pitch, yaw},
	}
	out.AccelCov = m.LinearAccelerationCovariance
	out.AngularRateCov = m.AngularVelocityCovariance
	out.AngleCov = m.OrientationCovariance
	return out
}

// WheelFromOdometry extracts forward speed and yaw rate with their
// variances from the twist block of a wheel odometry message.
func WheelFromOdometry(m rosmsg.Odometry, fallback time.Time) fusion.WheelMeasurement {
	return fusion.WheelMeasurement{
		Time:       stampOr(m.Header.Stamp, fallback),
		Forward:    m.Twist.Twist.Linear.X,
		YawRate:    m.Twist.Twist.Angular.Z,
		ForwardVar: m.Twist.Covariance[0],
		YawRateVar: m.Twist.Covariance[35],
	}
}

// RangeFromOdometry extracts the scan-matched pose and the feature
// counts the matcher smuggles through the twist block: corner count
// in linear.x, surface count in angular.x.
func RangeFromOdometry(m rosmsg.Odometry, fallback time.Time) fusion.RangeMeasurement {
	roll, pitch, yaw := m.Pose.Pose.Orientation.Euler()
	return fusion.RangeMeasurement{
		Time: stampOr(m.Header.Stamp, fallback),
		Pose: [6]float64{
			m.Pose.Pose.Position.X,
			m.Pose.Pose.Position.Y,
			m.Pose.Pose.Position.Z,
			roll, pitch, yaw,
		},
		CornerFeatures: m.Twist.Twist.Linear.X,
		SurfFeatures:   m.Twist.Twist.Angular.X,
	}
}
