package publish

import (
	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/rosmsg"
)

// OdometryFromEstimate builds the wire form of a fused estimate: pose
// and twist with their covariance blocks, orientation re-encoded as a
// quaternion.
func OdometryFromEstimate(e fusion.Estimate) rosmsg.Odometry {
	var out rosmsg.Odometry
	out.Header.Stamp = rosmsg.NewTime(e.Time)
	out.Header.FrameID = e.Frame
	out.ChildFrameID = e.ChildFrame

	out.Pose.Pose.Position = rosmsg.Vector3{X: e.Pose[0], Y: e.Pose[1], Z: e.Pose[2]}
	out.Pose.Pose.Orientation = rosmsg.QuaternionFromEuler(e.Pose[3], e.Pose[4], e.Pose[5])
	out.Pose.Covariance = e.PoseCov

	out.Twist.Twist.Linear = rosmsg.Vector3{X: e.Twist[0], Y: e.Twist[1], Z: e.Twist[2]}
	out.Twist.Twist.Angular = rosmsg.Vector3{X: e.Twist[3], Y: e.Twist[4], Z: e.Twist[5]}
	out.Twist.Covariance = e.TwistCov
	return out
}

// OdometryFromDerived builds the diagnostic twist message: no pose,
// just the derived body twist and its covariance under the derived
// frame.
func OdometryFromDerived(d fusion.DerivedTwist, frame, childFrame string) rosmsg.Odometry {
	var out rosmsg.Odometry
	out.Header.Stamp = rosmsg.NewTime(d.Time)
	out.Header.FrameID = frame
	out.ChildFrameID = childFrame

	out.Twist.Twist.Linear = rosmsg.Vector3{X: d.Twist[0], Y: d.Twist[1], Z: d.Twist[2]}
	out.Twist.Twist.Angular = rosmsg.Vector3{X: d.Twist[3], Y: d.Twist[4], Z: d.Twist[5]}
	out.Twist.Covariance = d.Cov
	return out
}

// TransformFromEstimate builds the map→robot transform matching the
// estimate's pose.
func TransformFromEstimate(e fusion.Estimate) rosmsg.TFMessage {
	var tr rosmsg.TransformStamped
	tr.Header.Stamp = rosmsg.NewTime(e.Time)
	tr.Header.FrameID = e.Frame
	tr.ChildFrameID = e.ChildFrame
	tr.Transform.Translation = rosmsg.Vector3{X: e.Pose[0], Y: e.Pose[1], Z: e.Pose[2]}
	tr.Transform.Rotation = rosmsg.QuaternionFromEuler(e.Pose[3], e.Pose[4], e.Pose[5])
	return rosmsg.TFMessage{Transforms: []rosmsg.TransformStamped{tr}}
}
