// Package geo provides WGS-84 coordinate transforms between geodetic,
// Earth-centered Earth-fixed (ECEF) and local East-North-Up (ENU) frames.
//
// Latitudes and longitudes are radians, all distances metres. The functions
// are pure; NaN and infinity inputs propagate through unchanged.
package geo

import "math"

// WGS-84 ellipsoid.
const (
	SemiMajorAxis = 6378137.0      // a, metres
	SemiMinorAxis = 6356752.314245 // b, metres

	flattening = (SemiMajorAxis - SemiMinorAxis) / SemiMajorAxis
	ecc2       = flattening * (2 - flattening) // first eccentricity squared
)

// Origin anchors a local ENU tangent plane at a geodetic point.
type Origin struct {
	Lat    float64 // radians
	Lon    float64 // radians
	Height float64 // metres above the ellipsoid
}

// GeodeticToECEF converts a geodetic position to ECEF coordinates.
func GeodeticToECEF(lat, lon, height float64) (x, y, z float64) {
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := SemiMajorAxis / math.Sqrt(1-ecc2*sinLat*sinLat)

	x = (n + height) * cosLat * cosLon
	y = (n + height) * cosLat * sinLon
	z = (n*(1-ecc2) + height) * sinLat
	return x, y, z
}

// ECEFToGeodetic converts ECEF coordinates to a geodetic position. The
// latitude is recovered iteratively; the fixed point is reached within a few
// rounds for any terrestrial input.
func ECEFToGeodetic(x, y, z float64) (lat, lon, height float64) {
	r2 := x*x + y*y

	zk := 0.0
	zi := z
	v := SemiMajorAxis
	sinLat := 0.0
	for math.Abs(zi-zk) >= 1e-4 {
		zk = zi
		sinLat = zi / math.Sqrt(r2+zi*zi)
		v = SemiMajorAxis / math.Sqrt(1-ecc2*sinLat*sinLat)
		zi = z + v*ecc2*sinLat
	}

	if r2 > 1e-12 {
		lat = math.Atan(zi / math.Sqrt(r2))
		lon = math.Atan2(y, x)
	} else {
		// On the polar axis.
		lat = math.Pi / 2
		if z < 0 {
			lat = -lat
		}
		lon = 0
	}
	height = math.Sqrt(r2+zi*zi) - v
	return lat, lon, height
}

// ECEFToENU converts ECEF coordinates to the local ENU frame at o.
func (o Origin) ECEFToENU(x, y, z float64) (e, n, u float64) {
	ox, oy, oz := GeodeticToECEF(o.Lat, o.Lon, o.Height)
	dx, dy, dz := x-ox, y-oy, z-oz

	sinLat, cosLat := math.Sincos(o.Lat)
	sinLon, cosLon := math.Sincos(o.Lon)

	e = -sinLon*dx + cosLon*dy
	n = -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz
	u = cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz
	return e, n, u
}

// ENUToECEF converts local ENU coordinates at o back to ECEF.
func (o Origin) ENUToECEF(e, n, u float64) (x, y, z float64) {
	ox, oy, oz := GeodeticToECEF(o.Lat, o.Lon, o.Height)

	sinLat, cosLat := math.Sincos(o.Lat)
	sinLon, cosLon := math.Sincos(o.Lon)

	x = ox - sinLon*e - sinLat*cosLon*n + cosLat*cosLon*u
	y = oy + cosLon*e - sinLat*sinLon*n + cosLat*sinLon*u
	z = oz + cosLat*n + sinLat*u
	return x, y, z
}

// GeodeticToENU converts a geodetic position to the local ENU frame at o.
func (o Origin) GeodeticToENU(lat, lon, height float64) (e, n, u float64) {
	x, y, z := GeodeticToECEF(lat, lon, height)
	return o.ECEFToENU(x, y, z)
}

// ENUToGeodetic converts local ENU coordinates at o to a geodetic position.
func (o Origin) ENUToGeodetic(e, n, u float64) (lat, lon, height float64) {
	x, y, z := o.ENUToECEF(e, n, u)
	return ECEFToGeodetic(x, y, z)
}
