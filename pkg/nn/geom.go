package nn

// Rect is an axis-aligned rectangle in normalized image coordinates, where the
// whole frame spans 0..1 on both axes. X,Y is the corner with the smallest coordinates.
// Whether Y grows up (viewport) or down (stored labels) depends on who produced the Rect.
type Rect struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Create a Rect from its min and max corners
func RectFromBounds(x1, y1, x2, y2 float32) Rect {
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

func (r Rect) X2() float32 {
	return r.X + r.Width
}

func (r Rect) Y2() float32 {
	return r.Y + r.Height
}

func (r Rect) Area() float32 {
	return r.Width * r.Height
}

// Intersection over Union, in [0, 1].
// Returns 0 when the combined area is not positive (eg two degenerate rectangles).
// Edges are summed in float64, so that (X+Width)-X is exactly Width and IOU(a, a) is exactly 1.
func (r Rect) IOU(b Rect) float32 {
	x1 := max(float64(r.X), float64(b.X))
	y1 := max(float64(r.Y), float64(b.Y))
	x2 := min(float64(r.X)+float64(r.Width), float64(b.X)+float64(b.Width))
	y2 := min(float64(r.Y)+float64(r.Height), float64(b.Y)+float64(b.Height))
	intersection := max(0, x2-x1) * max(0, y2-y1)
	union := float64(r.Width)*float64(r.Height) + float64(b.Width)*float64(b.Height) - intersection
	if union <= 0 {
		return 0
	}
	return min(1, float32(intersection/union))
}

// FlipY converts between bottom-up (viewport) and top-down (image row) vertical conventions.
// Applying it twice returns the original rectangle.
func (r Rect) FlipY() Rect {
	return Rect{
		X:      r.X,
		Y:      1 - r.Y2(),
		Width:  r.Width,
		Height: r.Height,
	}
}
