// Package units converts the estimator's native meters-per-second
// speeds into the units the monitor API accepts.
package units

// Accepted values for the units query parameter.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits lists every accepted unit value.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid reports whether unit is one of the accepted values.
func IsValid(unit string) bool {
	for _, v := range ValidUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns the accepted values for error messages.
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed in m/s, the unit every internal state
// and database column uses, to the target units.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}
