package synth

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/scene"
)

// Selection is a candidate that was accepted, with its projected viewport box
type Selection struct {
	Candidate
	Box  nn.Rect // Viewport coordinates (Y up)
	Pass int     // 1 = diversity pass, 2 = backfill pass
}

// SelectionResult is in order of acceptance
type SelectionResult []Selection

// SelectDetections picks up to n of the ranked candidates.
//
// Pass 1 walks the candidates in order, and accepts a candidate only if its IoU with every
// accepted box is at most iouThreshold. If that leaves us short of n, pass 2 walks the
// candidates again from the start, and accepts anything that is not a near-exact duplicate
// (IoU >= BackfillIoUThreshold) of an accepted box. Both passes share the same accepted set,
// and a candidate is never accepted twice.
func SelectDetections(cam scene.Camera, candidates []Candidate, n int, iouThreshold float32) SelectionResult {
	if n <= 0 || len(candidates) == 0 {
		return SelectionResult{}
	}

	boxes := make([]nn.Rect, len(candidates))
	for i := range candidates {
		boxes[i] = ProjectBox(cam, candidates[i].Bounds)
	}
	index := newBoxIndex(boxes)

	accepted := make([]bool, len(candidates))
	result := make(SelectionResult, 0, min(n, len(candidates)))

	// Boxes that the index doesn't return have zero intersection, and therefore zero IoU,
	// which passes both thresholds.
	maxIoU := func(i int) float32 {
		worst := float32(0)
		for _, j := range index.search(boxes[i]) {
			if !accepted[j] {
				continue
			}
			iou := boxes[i].IOU(boxes[j])
			if math32.IsNaN(iou) {
				return iou
			}
			worst = max(worst, iou)
		}
		return worst
	}

	accept := func(i, pass int) {
		accepted[i] = true
		result = append(result, Selection{
			Candidate: candidates[i],
			Box:       boxes[i],
			Pass:      pass,
		})
	}

	for i := 0; i < len(candidates) && len(result) < n; i++ {
		if maxIoU(i) <= iouThreshold {
			accept(i, 1)
		}
	}

	for i := 0; i < len(candidates) && len(result) < n; i++ {
		if accepted[i] {
			continue
		}
		if maxIoU(i) < BackfillIoUThreshold {
			accept(i, 2)
		}
	}

	return result
}
