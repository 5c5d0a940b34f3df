// Geodetic and local tangent plane conversions on the WGS-84 ellipsoid
package geo

import (
	"errors"
	"fmt"
	"math"

	golanggeo "github.com/kellydunn/golang-geo"
)

// WGS-84 ellipsoid constants.
const (
	semiMajor    = 6378137.0
	flattening   = 1 / 298.257223563
	eccentricity = flattening * (2 - flattening)
)

// ErrInvalidCoordinate is returned for latitudes or longitudes outside their range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// LLA is a geodetic position: degrees, degrees, metres above the ellipsoid.
type LLA struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
	Alt float64 `json:"alt" yaml:"alt"`
}

// NED is a position in the local north-east-down frame, in metres.
type NED struct {
	North float64 `json:"north"`
	East  float64 `json:"east"`
	Down  float64 `json:"down"`
}

// FromScaled converts a position reported in 1e-7 degree units.
func FromScaled(latE7, lonE7 int32, alt float64) LLA {
	return LLA{Lat: float64(latE7) * 1e-7, Lon: float64(lonE7) * 1e-7, Alt: alt}
}

// ValidateLLA rejects non-finite values and out of range latitude or longitude.
func ValidateLLA(p LLA) error {
	switch {
	case math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90:
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, p.Lat)
	case math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180:
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, p.Lon)
	case math.IsNaN(p.Alt) || math.IsInf(p.Alt, 0):
		return fmt.Errorf("%w: altitude %v", ErrInvalidCoordinate, p.Alt)
	}
	return nil
}

type ecef struct{ x, y, z float64 }

func toECEF(p LLA) ecef {
	lat := p.Lat * math.Pi / 180
	lon := p.Lon * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	n := semiMajor / math.Sqrt(1-eccentricity*sinLat*sinLat)
	return ecef{
		x: (n + p.Alt) * cosLat * cosLon,
		y: (n + p.Alt) * cosLat * sinLon,
		z: (n*(1-eccentricity) + p.Alt) * sinLat,
	}
}

func fromECEF(e ecef) LLA {
	lon := math.Atan2(e.y, e.x)
	p := math.Hypot(e.x, e.y)
	lat := math.Atan2(e.z, p*(1-eccentricity))
	var n float64
	for i := 0; i < 25; i++ {
		sinLat := math.Sin(lat)
		n = semiMajor / math.Sqrt(1-eccentricity*sinLat*sinLat)
		next := math.Atan2(e.z+eccentricity*n*sinLat, p)
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}
	sinLat, cosLat := math.Sincos(lat)
	n = semiMajor / math.Sqrt(1-eccentricity*sinLat*sinLat)
	alt := p*cosLat + e.z*sinLat - semiMajor*semiMajor/n
	return LLA{Lat: lat * 180 / math.Pi, Lon: lon * 180 / math.Pi, Alt: alt}
}

// ToNED returns the position of p in the tangent plane anchored at origin.
func ToNED(origin, p LLA) NED {
	o := toECEF(origin)
	q := toECEF(p)
	dx, dy, dz := q.x-o.x, q.y-o.y, q.z-o.z

	sinLat, cosLat := math.Sincos(origin.Lat * math.Pi / 180)
	sinLon, cosLon := math.Sincos(origin.Lon * math.Pi / 180)
	return NED{
		North: -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz,
		East:  -sinLon*dx + cosLon*dy,
		Down:  -cosLat*cosLon*dx - cosLat*sinLon*dy - sinLat*dz,
	}
}

// ToLLA is the inverse of ToNED.
func ToLLA(origin LLA, n NED) LLA {
	o := toECEF(origin)
	sinLat, cosLat := math.Sincos(origin.Lat * math.Pi / 180)
	sinLon, cosLon := math.Sincos(origin.Lon * math.Pi / 180)
	dx := -sinLat*cosLon*n.North - sinLon*n.East - cosLat*cosLon*n.Down
	dy := -sinLat*sinLon*n.North + cosLon*n.East - cosLat*sinLon*n.Down
	dz := cosLat*n.North - sinLat*n.Down
	return fromECEF(ecef{x: o.x + dx, y: o.y + dy, z: o.z + dz})
}

// Distance returns the great circle distance between a and b in metres.
func Distance(a, b LLA) float64 {
	return golanggeo.NewPoint(a.Lat, a.Lon).GreatCircleDistance(golanggeo.NewPoint(b.Lat, b.Lon)) * 1000
}

// Bearing returns the initial bearing from a to b in degrees.
func Bearing(a, b LLA) float64 {
	return golanggeo.NewPoint(a.Lat, a.Lon).BearingTo(golanggeo.NewPoint(b.Lat, b.Lon))
}
