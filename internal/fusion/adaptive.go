package fusion

// AdaptiveParams shapes the measurement noise of the range sensor from
// the scan matcher's feature counts. Rich scans (many matched features)
// earn low noise down to Floor; a featureless scan saturates at the
// (1 + Floor) ceiling. The x, y and yaw axes are driven by corner
// features, z, roll and pitch by surface features.
//
// This is a tuned heuristic, not a statistically derived noise model.
type AdaptiveParams struct {
	// CornerSaturation and SurfSaturation are the feature counts at
	// which the respective scale bottoms out at Floor.
	CornerSaturation float64
	SurfSaturation   float64

	// Floor keeps every entry strictly positive.
	Floor float64

	// Per-axis gain constants.
	GainX     float64
	GainY     float64
	GainZ     float64
	GainRoll  float64
	GainPitch float64
	GainYaw   float64
}

// DefaultAdaptiveParams returns the tuned production constants.
func DefaultAdaptiveParams() AdaptiveParams {
	return AdaptiveParams{
		CornerSaturation: 500,
		SurfSaturation:   5000,
		Floor:            0.005,
		GainX:            0.0022,
		GainY:            0.0016,
		GainZ:            0.0048,
		GainRoll:         0.0052,
		GainPitch:        0.005,
		GainYaw:          0.0044,
	}
}

// featureScale maps a feature count onto [floor, 1+floor], linearly
// decreasing until the count reaches saturation.
func featureScale(count, saturation, floor float64) float64 {
	if count > saturation {
		count = saturation
	}
	return (saturation-count)/saturation + floor
}

// Covariance returns the six diagonal noise entries (x, y, z, roll,
// pitch, yaw) for a scan with the given feature counts. rangeGain is
// the global range-sensor gain multiplier.
func (p AdaptiveParams) Covariance(corner, surf, rangeGain float64) [6]float64 {
	cs := featureScale(corner, p.CornerSaturation, p.Floor)
	ss := featureScale(surf, p.SurfSaturation, p.Floor)

	return [6]float64{
		rangeGain * p.GainX * cs,
		rangeGain * p.GainY * cs,
		rangeGain * p.GainZ * ss,
		rangeGain * p.GainRoll * ss,
		rangeGain * p.GainPitch * ss,
		rangeGain * p.GainYaw * cs,
	}
}
