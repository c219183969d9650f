package synth

import (
	flatbush "github.com/bmharper/flatbush-go"
	"github.com/chewxy/math32"
	"github.com/cyclopcam/synthlabel/pkg/nn"
)

// Normalized coordinates are quantized onto this grid for the spatial index
const (
	indexScale = 1 << 16
	indexLimit = 1 << 13 // |coordinate| is clamped to this, so that the full span (2*indexScale*indexLimit) fits in an int32
)

// boxIndex finds the boxes that might overlap a query box.
// It never misses a box with a non-zero IoU, but it may return boxes that only touch.
type boxIndex struct {
	fb *flatbush.Flatbush[int32]
}

func quantizeMin(v float32) int32 {
	if math32.IsNaN(v) || v < -indexLimit {
		return -indexLimit * indexScale
	}
	if v > indexLimit {
		return indexLimit * indexScale
	}
	return int32(math32.Floor(v * indexScale))
}

func quantizeMax(v float32) int32 {
	if math32.IsNaN(v) || v > indexLimit {
		return indexLimit * indexScale
	}
	if v < -indexLimit {
		return -indexLimit * indexScale
	}
	return int32(math32.Ceil(v * indexScale))
}

// Quantized bounds of r. A box with NaN coordinates spans the whole grid, so that
// it is compared against everything, just like a linear scan would.
func quantizeRect(r nn.Rect) (minX, minY, maxX, maxY int32) {
	return quantizeMin(r.X), quantizeMin(r.Y), quantizeMax(r.X2()), quantizeMax(r.Y2())
}

func newBoxIndex(boxes []nn.Rect) *boxIndex {
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(boxes))
	for _, b := range boxes {
		fb.Add(quantizeRect(b))
	}
	fb.Finish()
	return &boxIndex{fb: fb}
}

// search returns the indices of all boxes whose quantized bounds intersect r
func (x *boxIndex) search(r nn.Rect) []int {
	return x.fb.Search(quantizeRect(r))
}
