package geo

import "math"

const (
	earthRadiusKM = 6371.0
	earthRadiusM  = 6371007
)

func havFunction(angleRad float64) float64 {
	return (1 - math.Cos(angleRad)) / 2.0
}

func degreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

func radiansToDegree(angle float64) float64 {
	return angle * (180.0 / math.Pi)
}

// CalculateHaversineDistance great-circle distance in km.
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	latOne = degreeToRadians(latOne)
	longOne = degreeToRadians(longOne)
	latTwo = degreeToRadians(latTwo)
	longTwo = degreeToRadians(longTwo)

	a := havFunction(latOne-latTwo) + math.Cos(latOne)*math.Cos(latTwo)*havFunction(longOne-longTwo)
	c := 2.0 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

// HaversineDistanceM great-circle distance in meters.
func HaversineDistanceM(latOne, longOne, latTwo, longTwo float64) float64 {
	return CalculateHaversineDistance(latOne, longOne, latTwo, longTwo) * 1000.0
}

// GetDestinationPoint destination coordinate after traveling distKm from
// (lat, lon) on the given bearing (degrees clockwise from north).
func GetDestinationPoint(lat, lon, bearingDeg, distKm float64) (float64, float64) {
	latRad := degreeToRadians(lat)
	lonRad := degreeToRadians(lon)
	bearing := degreeToRadians(bearingDeg)
	angular := distKm / earthRadiusKM

	destLat := math.Asin(math.Sin(latRad)*math.Cos(angular) +
		math.Cos(latRad)*math.Sin(angular)*math.Cos(bearing))
	destLon := lonRad + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(latRad),
		math.Cos(angular)-math.Sin(latRad)*math.Sin(destLat))

	return radiansToDegree(destLat), radiansToDegree(destLon)
}

// MetersToDegrees coarse meter->degree conversion for bbox expansion at
// the given latitude. fine for tolerances of a few meters.
func MetersToDegrees(meters, lat float64) float64 {
	latDeg := meters / 111320.0
	lonScale := math.Cos(degreeToRadians(lat))
	if lonScale < 0.01 {
		lonScale = 0.01
	}
	lonDeg := meters / (111320.0 * lonScale)
	if lonDeg > latDeg {
		return lonDeg
	}
	return latDeg
}
