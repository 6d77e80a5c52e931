package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Distance returns the great-circle distance in meters between two coordinates
// using the haversine formula on a spherical Earth. Inputs are not validated.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Between is Distance for two points.
func Between(a, b Point) float64 {
	return Distance(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Fence is a circular region around a center point.
type Fence struct {
	Center       Point   `json:"center"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Check reports the distance from p to the fence center and whether p lies
// inside the fence. The boundary counts as inside.
func (f Fence) Check(p Point) (float64, bool) {
	d := Between(f.Center, p)
	return d, d <= f.RadiusMeters
}
