package scene

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r3"
)

const (
	DefaultFovY   = 60.0
	DefaultAspect = 16.0 / 9.0
)

var worldUp = r3.Vector{X: 0, Y: 1, Z: 0}

// PinholeCamera is a perspective camera with Y up.
// At Yaw = 0 and Pitch = 0 the camera looks down +Z, with +X to the right.
type PinholeCamera struct {
	Label  string
	Eye    r3.Vector
	Yaw    float64 // Degrees, positive turns towards +X
	Pitch  float64 // Degrees, positive looks up. Must be inside (-90, 90)
	FovY   float64 // Vertical field of view in degrees
	Aspect float64 // Width / Height of the viewport. Zero means DefaultAspect.
	Scene  Scene   // What Render draws
	Raster *Rasterizer
}

func NewPinholeCamera(label string, eye r3.Vector, yaw, pitch float64, sc Scene) *PinholeCamera {
	return &PinholeCamera{
		Label:  label,
		Eye:    eye,
		Yaw:    yaw,
		Pitch:  pitch,
		FovY:   DefaultFovY,
		Aspect: DefaultAspect,
		Scene:  sc,
	}
}

func (c *PinholeCamera) Validate() error {
	if c.Pitch <= -90 || c.Pitch >= 90 {
		return fmt.Errorf("camera '%v': pitch %v must be between -90 and 90 degrees", c.Label, c.Pitch)
	}
	if c.FovY <= 0 || c.FovY >= 180 {
		return fmt.Errorf("camera '%v': fovY %v must be between 0 and 180 degrees", c.Label, c.FovY)
	}
	if c.Aspect < 0 {
		return fmt.Errorf("camera '%v': aspect %v may not be negative", c.Label, c.Aspect)
	}
	return nil
}

func (c *PinholeCamera) Name() string {
	return c.Label
}

func (c *PinholeCamera) Position() r3.Vector {
	return c.Eye
}

// Return the orthonormal camera basis (right, up, forward)
func (c *PinholeCamera) basis() (right, up, forward r3.Vector) {
	yaw := c.Yaw * math.Pi / 180
	pitch := c.Pitch * math.Pi / 180
	forward = r3.Vector{
		X: math.Sin(yaw) * math.Cos(pitch),
		Y: math.Sin(pitch),
		Z: math.Cos(yaw) * math.Cos(pitch),
	}
	right = worldUp.Cross(forward).Normalize()
	up = forward.Cross(right)
	return
}

func (c *PinholeCamera) aspect() float64 {
	if c.Aspect == 0 {
		return DefaultAspect
	}
	return c.Aspect
}

func (c *PinholeCamera) WorldToViewport(p r3.Vector) r3.Vector {
	right, up, forward := c.basis()
	d := p.Sub(c.Eye)
	depth := d.Dot(forward)
	tanHalf := math.Tan(c.FovY * math.Pi / 360)
	ndcX := d.Dot(right) / (depth * tanHalf * c.aspect())
	ndcY := d.Dot(up) / (depth * tanHalf)
	return r3.Vector{
		X: (ndcX + 1) / 2,
		Y: (ndcY + 1) / 2,
		Z: depth,
	}
}

// HorizonY returns the viewport Y of the horizon line (where the ground plane vanishes)
func (c *PinholeCamera) HorizonY() float64 {
	tanHalf := math.Tan(c.FovY * math.Pi / 360)
	ndcY := -math.Tan(c.Pitch*math.Pi/180) / tanHalf
	return (ndcY + 1) / 2
}

func (c *PinholeCamera) Render(width, height int) (image.Image, error) {
	if c.Scene == nil {
		return nil, errors.New("camera has no scene to render")
	}
	r := c.Raster
	if r == nil {
		r = NewRasterizer()
	}
	return r.Render(c, c.Scene, width, height)
}
