package geom

import (
	"math"
)

// Domain describes which axes of the simulation box wrap around. It is
// built once from the configuration and never changes afterwards.
type Domain struct {
	Periodic [3]bool
	Period   [3]float64
	// Origin is the lower corner of the periodic cell. It is reported back
	// to the user but does not enter image enumeration: an undeclared box
	// spans [0, Period] on periodic axes.
	Origin [3]float64
}

// Box is the spatial region owned by one worker of the force calculator, as
// reported for the current iteration. An undeclared Box covers the whole
// domain.
type Box struct {
	Declared     bool
	Lower, Upper Vec
}

// Image is the integer displacement of a periodic replica, in units of the
// period along each axis.
type Image [3]int

// Contains returns true if the point x lies inside the box, boundaries
// included.
func (b *Box) Contains(x *Vec) bool {
	if !b.Declared {
		return true
	}
	for j := 0; j < 3; j++ {
		if x[j] < b.Lower[j] || x[j] > b.Upper[j] {
			return false
		}
	}
	return true
}

// AxisRange returns the inclusive range of image offsets along axis j for
// which a sphere of radius r centered at x overlaps box. ok is false when
// there is no overlap along this axis at all, in which case lo and hi are
// meaningless.
func (d *Domain) AxisRange(j int, x, r float64, box *Box) (lo, hi int, ok bool) {
	if d.Periodic[j] {
		lower, upper := 0.0, d.Period[j]
		if box.Declared {
			lower, upper = box.Lower[j], box.Upper[j]
		}
		prd := d.Period[j]
		hi = int(math.Floor((upper - x + r) / prd))
		lo = int(math.Ceil((lower - x - r) / prd))
		return lo, hi, lo <= hi
	}

	if !box.Declared {
		return 0, 0, true
	}
	if x+r >= box.Lower[j] && x-r <= box.Upper[j] {
		return 0, 0, true
	}
	return 0, 0, false
}

// ranges computes AxisRange for all three axes. ok is false if any axis is
// empty.
func (d *Domain) ranges(x *Vec, r float64, box *Box) (lo, hi [3]int, ok bool) {
	for j := 0; j < 3; j++ {
		var axisOk bool
		lo[j], hi[j], axisOk = d.AxisRange(j, x[j], r, box)
		if !axisOk {
			return lo, hi, false
		}
	}
	return lo, hi, true
}

// Count returns the number of images of the sphere (x, r) which overlap box.
func (d *Domain) Count(x *Vec, r float64, box *Box) int {
	lo, hi, ok := d.ranges(x, r, box)
	if !ok {
		return 0
	}
	return (hi[0] - lo[0] + 1) * (hi[1] - lo[1] + 1) * (hi[2] - lo[2] + 1)
}

// Images appends to buf every image of the sphere (x, r) which overlaps box
// and returns the extended slice. Images are visited with axis 0 outermost
// and axis 2 innermost; callers rely on this order being the same on every
// call with the same arguments.
func (d *Domain) Images(x *Vec, r float64, box *Box, buf []Image) []Image {
	lo, hi, ok := d.ranges(x, r, box)
	if !ok {
		return buf
	}

	var img Image
	for img[0] = lo[0]; img[0] <= hi[0]; img[0]++ {
		for img[1] = lo[1]; img[1] <= hi[1]; img[1]++ {
			for img[2] = lo[2]; img[2] <= hi[2]; img[2]++ {
				buf = append(buf, img)
			}
		}
	}
	return buf
}

// TranslateAt writes the position of the given image of x to target.
func (d *Domain) TranslateAt(x *Vec, img Image, target *Vec) *Vec {
	for j := 0; j < 3; j++ {
		target[j] = x[j] + float64(img[j])*d.Period[j]
	}
	return target
}
