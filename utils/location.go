package utils

import "math"

const earthRadiusKm = 6371.0

// Location is a point given in degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l Location) radians() (lat, lng float64) {
	return l.Latitude * math.Pi / 180, l.Longitude * math.Pi / 180
}

// Distance is the great-circle distance between two locations in km,
// rounded to 0.1 km as shift listings show it.
func Distance(from, to Location) float64 {
	lat1, lng1 := from.radians()
	lat2, lng2 := to.radians()

	sinLat := math.Sin((lat2 - lat1) / 2)
	sinLng := math.Sin((lng2 - lng1) / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	km := 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
	return math.Round(km*10) / 10
}

// ValidCoordinates reports whether lat and lng are within range.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
