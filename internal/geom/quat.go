package geom

import "math"

// Quat is a rotation quaternion stored as (x, y, z, w).
type Quat [4]float64

// IdentityQuat returns the identity rotation.
func IdentityQuat() Quat {
	return Quat{0, 0, 0, 1}
}

// QuatAxisAngle returns the rotation of angle radians around axis.
// The axis must be normalized.
func QuatAxisAngle(axis Vec3, angle float64) Quat {
	s := math.Sin(angle / 2)
	return Quat{axis[0] * s, axis[1] * s, axis[2] * s, math.Cos(angle / 2)}
}

func (q Quat) X() float64 { return q[0] }
func (q Quat) Y() float64 { return q[1] }
func (q Quat) Z() float64 { return q[2] }
func (q Quat) W() float64 { return q[3] }

// Dot returns the 4D dot product of q and o.
func (q Quat) Dot(o Quat) float64 {
	return q[0]*o[0] + q[1]*o[1] + q[2]*o[2] + q[3]*o[3]
}

// Length returns the quaternion magnitude.
func (q Quat) Length() float64 {
	return math.Sqrt(q.Dot(q))
}

// Normalize returns q scaled to unit length. A zero quaternion becomes the identity.
func (q Quat) Normalize() Quat {
	l := q.Length()
	if l == 0 {
		return IdentityQuat()
	}
	return Quat{q[0] / l, q[1] / l, q[2] / l, q[3] / l}
}

// AngleTo returns the rotation angle in radians between q and o, taking the
// shorter of the two arcs.
func (q Quat) AngleTo(o Quat) float64 {
	d := math.Abs(q.Dot(o))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}

// Slerp returns the spherical linear interpolation from q to other by t,
// along the shortest arc. t == 0 returns q and t == 1 returns other exactly.
func (q Quat) Slerp(other Quat, t float64) Quat {
	if t == 0 {
		return q
	}
	if t == 1 {
		return other
	}

	x, y, z, w := q[0], q[1], q[2], q[3]

	cosHalfTheta := w*other[3] + x*other[0] + y*other[1] + z*other[2]

	var r Quat
	if cosHalfTheta < 0 {
		r = Quat{-other[0], -other[1], -other[2], -other[3]}
		cosHalfTheta = -cosHalfTheta
	} else {
		r = other
	}

	if cosHalfTheta >= 1.0 {
		return q
	}

	sqrSinHalfTheta := 1.0 - cosHalfTheta*cosHalfTheta
	if sqrSinHalfTheta <= math.SmallestNonzeroFloat64 {
		s := 1 - t
		return Quat{
			s*x + t*r[0],
			s*y + t*r[1],
			s*z + t*r[2],
			s*w + t*r[3],
		}.Normalize()
	}

	sinHalfTheta := math.Sqrt(sqrSinHalfTheta)
	halfTheta := math.Atan2(sinHalfTheta, cosHalfTheta)
	ratioA := math.Sin((1-t)*halfTheta) / sinHalfTheta
	ratioB := math.Sin(t*halfTheta) / sinHalfTheta

	return Quat{
		x*ratioA + r[0]*ratioB,
		y*ratioA + r[1]*ratioB,
		z*ratioA + r[2]*ratioB,
		w*ratioA + r[3]*ratioB,
	}
}

// LookAt returns the orientation of a camera at eye looking at target, using
// the convention that a camera looks down its local -Z axis.
func LookAt(eye, target, up Vec3) Quat {
	z := eye.Sub(target)
	if z.Length() == 0 {
		z[2] = 1
	}
	z = z.Normalize()

	x := up.Cross(z)
	if x.Length() == 0 {
		// up and view direction are parallel
		if math.Abs(up[2]) == 1 {
			z[0] += 0.0001
		} else {
			z[2] += 0.0001
		}
		z = z.Normalize()
		x = up.Cross(z)
	}
	x = x.Normalize()
	y := z.Cross(x)

	return quatFromBasis(x, y, z)
}

// quatFromBasis converts the rotation matrix with columns x, y, z.
func quatFromBasis(x, y, z Vec3) Quat {
	m11, m12, m13 := x[0], y[0], z[0]
	m21, m22, m23 := x[1], y[1], z[1]
	m31, m32, m33 := x[2], y[2], z[2]

	trace := m11 + m22 + m33
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		return Quat{(m32 - m23) * s, (m13 - m31) * s, (m21 - m12) * s, 0.25 / s}
	case m11 > m22 && m11 > m33:
		s := 2.0 * math.Sqrt(1.0+m11-m22-m33)
		return Quat{0.25 * s, (m12 + m21) / s, (m13 + m31) / s, (m32 - m23) / s}
	case m22 > m33:
		s := 2.0 * math.Sqrt(1.0+m22-m11-m33)
		return Quat{(m12 + m21) / s, 0.25 * s, (m23 + m32) / s, (m13 - m31) / s}
	default:
		s := 2.0 * math.Sqrt(1.0+m33-m11-m22)
		return Quat{(m13 + m31) / s, (m23 + m32) / s, 0.25 * s, (m21 - m12) / s}
	}
}
