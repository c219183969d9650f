package scene

import (
	"math"

	"github.com/golang/geo/r3"
)

// Box3 is an axis-aligned bounding volume in world space
type Box3 struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// Create a Box3 from its center and full size
func BoxFromCenterSize(center, size r3.Vector) Box3 {
	half := size.Mul(0.5)
	return Box3{
		Min: center.Sub(half),
		Max: center.Add(half),
	}
}

func (b Box3) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box3) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// IsValid is true if Min <= Max on every axis, and no component is NaN or infinite
func (b Box3) IsValid() bool {
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Corners returns all 8 corners of the box.
// Projecting only Min and Max is not enough once perspective or rotation is involved.
func (b Box3) Corners() [8]r3.Vector {
	return [8]r3.Vector{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}
