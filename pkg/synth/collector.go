package synth

import (
	"sort"

	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/scene"
)

// Candidate is an object that matched a category and is visible to the camera
type Candidate struct {
	Object   *scene.Object
	Bounds   scene.Box3
	Class    int    // Index into the category list
	Keyword  string // The category keyword that matched
	Distance float64
}

// CollectCandidates returns the visible objects that match a category, closest first.
// Only the center of an object's bounds is tested for visibility. The center must be in front
// of the camera, and inside [margin, 1-margin] on both viewport axes.
// Objects at exactly the same distance keep their scene enumeration order.
func CollectCandidates(sc scene.Scene, cam scene.Camera, margin float64, cats *nn.Categories) []Candidate {
	eye := cam.Position()
	candidates := []Candidate{}
	for _, obj := range sc.Objects() {
		class, keyword, ok := cats.Match(obj.Name)
		if !ok {
			continue
		}
		center := obj.Bounds.Center()
		p := cam.WorldToViewport(center)
		if p.Z <= 0 {
			continue
		}
		if p.X < margin || p.X > 1-margin || p.Y < margin || p.Y > 1-margin {
			continue
		}
		candidates = append(candidates, Candidate{
			Object:   obj,
			Bounds:   obj.Bounds,
			Class:    class,
			Keyword:  keyword,
			Distance: eye.Distance(center),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	return candidates
}
