package domain

import "math"

// kmPerMile is the exact statute mile factor.
const kmPerMile = 1.609344

// ConvertSpeed converts a speed limit between km/h and mph. Values converted
// to mph are floored to the next multiple of 5, matching posted US signage
// (a 60 km/h limit renders as 35 mph, not 37). Converting to km/h rounds to
// the nearest whole number. A nil input stays nil.
func ConvertSpeed(speed *int, fromUnit, toUnit string) *int {
	if speed == nil {
		return nil
	}

	if fromUnit == toUnit {
		if toUnit == UnitMPH {
			return IntPtr(floorToFive(float64(*speed)))
		}
		return IntPtr(*speed)
	}

	switch {
	case fromUnit == UnitKMH && toUnit == UnitMPH:
		return IntPtr(floorToFive(float64(*speed) / kmPerMile))
	case fromUnit == UnitMPH && toUnit == UnitKMH:
		return IntPtr(int(math.Round(float64(*speed) * kmPerMile)))
	}
	return IntPtr(*speed)
}

func floorToFive(v float64) int {
	return int(math.Floor(v/5) * 5)
}
