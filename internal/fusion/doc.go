// Package fusion implements the multi-sensor pose/velocity estimator.
//
// The estimator is a 12-state extended Kalman filter: world-frame pose
// (x, y, z, roll, pitch, yaw) followed by body-frame velocity
// (vx, vy, vz, wx, wy, wz). A fixed-rate scheduler predicts every tick
// and applies a correction for each sensor whose staging slot holds
// fresh data:
//
//   - inertial (~50 Hz): orientation angles observed directly
//   - wheel (~20 Hz): forward velocity and yaw rate observed directly
//   - range odometry (~10 Hz): absolute scan-matched pose converted to a
//     synthetic body twist, with measurement noise derived from the
//     scan's corner/surface feature counts
//
// Producers (UDP ingest, serial reader) write measurements into Staging;
// the scheduler goroutine is the only caller of Filter methods. Filter
// itself is not safe for concurrent use.
package fusion
