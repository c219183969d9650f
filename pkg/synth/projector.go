package synth

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/scene"
)

// ProjectBox returns the viewport rectangle that bounds all 8 projected corners of b.
// Y grows upwards, like the viewport.
// Corners behind the camera are projected like any other corner, so an object that straddles
// the camera plane can produce a huge or degenerate rectangle. Such objects are normally
// rejected earlier, by the center depth test in CollectCandidates.
func ProjectBox(cam scene.Camera, b scene.Box3) nn.Rect {
	minX := math32.Inf(1)
	minY := math32.Inf(1)
	maxX := math32.Inf(-1)
	maxY := math32.Inf(-1)
	for _, c := range b.Corners() {
		p := cam.WorldToViewport(c)
		x := float32(p.X)
		y := float32(p.Y)
		minX = math32.Min(minX, x)
		minY = math32.Min(minY, y)
		maxX = math32.Max(maxX, x)
		maxY = math32.Max(maxY, y)
	}
	return nn.RectFromBounds(minX, minY, maxX, maxY)
}
