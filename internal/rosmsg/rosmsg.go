// Package rosmsg defines the JSON message types exchanged with the
// rosbridge-style UDP transport: the geometry and odometry payloads
// plus the envelope that wraps them on the wire. Field names and
// covariance layouts follow the ROS conventions so existing robot
// software can publish to and consume from the daemon unchanged.
package rosmsg

import (
	"encoding/json"
	"math"
	"time"
)

// Envelope is the outer wire frame. Msg stays raw until the topic is
// known.
type Envelope struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic"`
	Msg   json.RawMessage `json:"msg,omitempty"`
}

// OpPublish is the only envelope op the daemon sends or accepts.
const OpPublish = "publish"

// Publication marshals msg wrapped in a publish envelope.
func Publication(topic string, msg any) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Op: OpPublish, Topic: topic, Msg: raw})
}

// Time is a ROS timestamp. ROS 2 publishers fill nanosec, ROS 1
// bridges fill nsec; NanosecValue accepts either.
type Time struct {
	Sec     int64 `json:"sec"`
	Nanosec int64 `json:"nanosec,omitempty"`
	Nsec    int64 `json:"nsec,omitempty"`
}

// NewTime converts a wall time.
func NewTime(t time.Time) Time {
	return Time{Sec: t.Unix(), Nanosec: int64(t.Nanosecond())}
}

// NanosecValue returns the sub-second part regardless of which field
// the publisher used.
func (t Time) NanosecValue() int64 {
	if t.Nanosec != 0 {
		return t.Nanosec
	}
	return t.Nsec
}

// Std converts to a wall time.
func (t Time) Std() time.Time {
	return time.Unix(t.Sec, t.NanosecValue())
}

// Header stamps a message with time and coordinate frame.
type Header struct {
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the no-rotation quaternion.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// QuaternionFromEuler builds the quaternion for intrinsic ZYX
// yaw-pitch-roll angles in radians.
func QuaternionFromEuler(roll, pitch, yaw float64) Quaternion {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)

	return Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// Euler extracts ZYX yaw-pitch-roll angles in radians. Pitch is
// clamped to ±π/2 when the quaternion sits on the gimbal singularity.
func (q Quaternion) Euler() (roll, pitch, yaw float64) {
	roll = math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	yaw = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return roll, pitch, yaw
}

// Yaw extracts just the heading.
func (q Quaternion) Yaw() float64 {
	siny := 2 * (q.W*q.Z + q.X*q.Y)
	cosy := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	return math.Atan2(siny, cosy)
}

type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// PoseWithCovariance carries a pose and its 6x6 row-major covariance
// over (x, y, z, roll, pitch, yaw).
type PoseWithCovariance struct {
	Pose       Pose        `json:"pose"`
	Covariance [36]float64 `json:"covariance"`
}

// TwistWithCovariance carries a twist and its 6x6 row-major covariance
// over (vx, vy, vz, wx, wy, wz).
type TwistWithCovariance struct {
	Twist      Twist       `json:"twist"`
	Covariance [36]float64 `json:"covariance"`
}

// Odometry is a nav_msgs/Odometry payload.
type Odometry struct {
	Header       Header              `json:"header"`
	ChildFrameID string              `json:"child_frame_id"`
	Pose         PoseWithCovariance  `json:"pose"`
	Twist        TwistWithCovariance `json:"twist"`
}

// Imu is a sensor_msgs/Imu payload. The 3x3 covariances are row-major.
type Imu struct {
	Header Header `json:"header"`

	Orientation           Quaternion `json:"orientation"`
	OrientationCovariance [9]float64 `json:"orientation_covariance"`

	AngularVelocity           Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance [9]float64 `json:"angular_velocity_covariance"`

	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

// Transform is a translation plus rotation.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// TransformStamped relates a child frame to the header frame.
type TransformStamped struct {
	Header       Header    `json:"header"`
	ChildFrameID string    `json:"child_frame_id"`
	Transform    Transform `json:"transform"`
}

// TFMessage is a tf2_msgs/TFMessage payload.
type TFMessage struct {
	Transforms []TransformStamped `json:"transforms"`
}
