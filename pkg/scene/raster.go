package scene

import (
	"image"
	"image/color"
	"sort"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
)

// Fill colors for objects, picked by object ID
var objectColors = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
	{R: 100, G: 115, B: 255, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
	{R: 255, G: 149, B: 200, A: 255},
	{R: 44, G: 153, B: 168, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
}

// Rasterizer draws a flat-shaded silhouette of every object in front of the camera.
// It exists so that exported label files have a matching image without a real renderer.
type Rasterizer struct {
	Sky     color.Color
	Ground  color.Color
	Outline color.Color
}

func NewRasterizer() *Rasterizer {
	return &Rasterizer{
		Sky:     color.RGBA{R: 170, G: 200, B: 230, A: 255},
		Ground:  color.RGBA{R: 110, G: 105, B: 95, A: 255},
		Outline: color.RGBA{R: 30, G: 30, B: 30, A: 255},
	}
}

type horizonCamera interface {
	HorizonY() float64
}

type projectedHull struct {
	obj    *Object
	depth  float64
	points []r3.Vector
}

// Render draws the scene from the camera's point of view, painting far objects first
func (r *Rasterizer) Render(cam Camera, sc Scene, width, height int) (image.Image, error) {
	dc := gg.NewContext(width, height)
	w := float64(width)
	h := float64(height)

	dc.SetColor(r.Sky)
	dc.Clear()
	if hc, ok := cam.(horizonCamera); ok {
		horizon := (1 - hc.HorizonY()) * h
		if horizon < h {
			dc.SetColor(r.Ground)
			dc.DrawRectangle(0, max(0, horizon), w, h-max(0, horizon))
			dc.Fill()
		}
	}

	hulls := []projectedHull{}
	for _, obj := range sc.Objects() {
		center := cam.WorldToViewport(obj.Bounds.Center())
		if center.Z <= 0 {
			continue
		}
		pts := []r3.Vector{}
		for _, c := range obj.Bounds.Corners() {
			p := cam.WorldToViewport(c)
			if p.Z > 0 {
				// image rows grow downwards
				pts = append(pts, r3.Vector{X: p.X * w, Y: (1 - p.Y) * h})
			}
		}
		hull := convexHull(pts)
		if len(hull) < 3 {
			continue
		}
		hulls = append(hulls, projectedHull{
			obj:    obj,
			depth:  cam.Position().Distance(obj.Bounds.Center()),
			points: hull,
		})
	}

	sort.SliceStable(hulls, func(i, j int) bool {
		return hulls[i].depth > hulls[j].depth
	})

	for _, hull := range hulls {
		dc.NewSubPath()
		for i, p := range hull.points {
			if i == 0 {
				dc.MoveTo(p.X, p.Y)
			} else {
				dc.LineTo(p.X, p.Y)
			}
		}
		dc.ClosePath()
		dc.SetColor(objectColors[uint64(hull.obj.ID)%uint64(len(objectColors))])
		dc.FillPreserve()
		dc.SetColor(r.Outline)
		dc.SetLineWidth(1.5)
		dc.Stroke()
	}

	return dc.Image(), nil
}

// Andrew's monotone chain, on X/Y only
func convexHull(pts []r3.Vector) []r3.Vector {
	if len(pts) < 3 {
		return pts
	}
	sorted := append([]r3.Vector(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	cross := func(o, a, b r3.Vector) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	hull := make([]r3.Vector, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
