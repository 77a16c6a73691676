package trip

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Conversion factors are evaluated in float64 at runtime (pi/180, 180/pi) rather than as
// exact constants so the last bit matches the training pipeline.
var (
	pi        = math.Pi
	radPerDeg = pi / 180.0
	degPerRad = 180.0 / pi
)

// The explicit conversions round each product on its own, so callers such as phi2-phi1 or
// degrees(x)+360 are never fused into a single FMA on architectures that have one.
func radians(deg float64) float64 { return float64(deg * radPerDeg) }

func degrees(rad float64) float64 { return float64(rad * degPerRad) }

// HaversineKm returns the great-circle distance in kilometers between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, lambda1 := radians(lat1), radians(lon1)
	phi2, lambda2 := radians(lat2), radians(lon2)

	dLat := phi2 - phi1
	dLon := lambda2 - lambda1

	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	a := float64(sLat*sLat) + float64(math.Cos(phi1)*math.Cos(phi2)*float64(sLon*sLon))

	// rounding can push a a hair outside [0,1] near antipodal points
	if a > 1 {
		a = 1
	} else if a < 0 {
		a = 0
	}

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// BearingDeg returns the initial bearing from the first point to the second in degrees,
// normalized to [0, 360). Coincident points yield 0.
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := radians(lat1), radians(lat2)
	dLon := radians(lon2 - lon1)

	// explicit conversions keep the compiler from fusing these into FMAs, which would
	// leave a nonzero x for coincident points
	y := float64(math.Sin(dLon) * math.Cos(phi2))
	x := float64(math.Cos(phi1)*math.Sin(phi2)) - float64(math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon))

	if x == 0 && y == 0 {
		return 0
	}

	bearing := math.Mod(degrees(math.Atan2(y, x))+360, 360)
	if bearing >= 360 {
		return 0
	}
	return bearing
}
