package stereo

import "math"

// vec3 is a Cartesian direction or position in the ground frame:
// X east, Y north, Z up. Azimuth is measured clockwise from north.
type vec3 struct{ X, Y, Z float64 }

func (a vec3) add(b vec3) vec3      { return vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a vec3) scale(s float64) vec3 { return vec3{s * a.X, s * a.Y, s * a.Z} }
func (a vec3) dot(b vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a vec3) cross(b vec3) vec3 {
	return vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a vec3) norm() float64 { return math.Sqrt(a.dot(a)) }

func (a vec3) unit() vec3 {
	n := a.norm()
	if n == 0 {
		return vec3{}
	}
	return a.scale(1 / n)
}

// altAzToVector converts horizon coordinates (radians) to a unit vector.
func altAzToVector(alt, az float64) vec3 {
	cosAlt := math.Cos(alt)
	return vec3{
		X: cosAlt * math.Sin(az),
		Y: cosAlt * math.Cos(az),
		Z: math.Sin(alt),
	}
}

// vectorToAltAz converts a direction vector to horizon coordinates,
// with azimuth normalized into [0, 2pi).
func vectorToAltAz(v vec3) (alt, az float64) {
	u := v.unit()
	alt = math.Asin(u.Z)
	az = math.Atan2(u.X, u.Y)
	if az < 0 {
		az += 2 * math.Pi
	}
	return alt, az
}

// pointingBasis returns the tangent-plane basis at a pointing direction:
// eAz along increasing azimuth (horizontal), eAlt along increasing
// altitude. Camera-plane x maps onto eAz and y onto eAlt.
func pointingBasis(alt, az float64) (eAz, eAlt vec3) {
	sinAlt, cosAlt := math.Sincos(alt)
	sinAz, cosAz := math.Sincos(az)
	eAz = vec3{cosAz, -sinAz, 0}
	eAlt = vec3{-sinAlt * sinAz, -sinAlt * cosAz, cosAlt}
	return eAz, eAlt
}

// skyDirection maps small angular offsets (dx along eAz, dy along eAlt,
// radians) at a pointing to the corresponding sky direction.
func skyDirection(alt, az, dx, dy float64) vec3 {
	p := altAzToVector(alt, az)
	eAz, eAlt := pointingBasis(alt, az)
	return p.add(eAz.scale(dx)).add(eAlt.scale(dy)).unit()
}

// planeProjection is a gnomonic projection of direction v onto the
// tangent plane at reference direction ref with basis (eAz, eAlt).
// Valid for directions in the forward hemisphere of ref.
func planeProjection(v, ref, eAz, eAlt vec3) (u, w float64, ok bool) {
	d := v.dot(ref)
	if d <= 0 {
		return 0, 0, false
	}
	return v.dot(eAz) / d, v.dot(eAlt) / d, true
}

// planeDirection inverts planeProjection: tangent-plane coordinates back
// to a sky direction.
func planeDirection(u, w float64, ref, eAz, eAlt vec3) vec3 {
	return ref.add(eAz.scale(u)).add(eAlt.scale(w)).unit()
}
