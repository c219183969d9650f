package synth

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"strings"

	"github.com/cyclopcam/synthlabel/pkg/scene"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/golang/geo/r3"
)

// flatCamera maps world X and Y straight onto the viewport, and uses Z as depth.
// That makes it trivial to place a box at an exact viewport position.
type flatCamera struct {
	name      string
	eye       r3.Vector
	renderErr error
}

func (c *flatCamera) Name() string        { return c.name }
func (c *flatCamera) Position() r3.Vector { return c.eye }

func (c *flatCamera) WorldToViewport(p r3.Vector) r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z - c.eye.Z}
}

func (c *flatCamera) Render(width, height int) (image.Image, error) {
	if c.renderErr != nil {
		return nil, c.renderErr
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 40, G: 80, B: 120, A: 255}), image.Point{}, draw.Src)
	return img, nil
}

// Create an object whose bounds project onto the viewport rectangle (x1,y1)-(x2,y2), at depth z
func flatObject(id int64, name string, x1, y1, x2, y2, z float64) *scene.Object {
	return &scene.Object{
		ID:   id,
		Name: name,
		Bounds: scene.Box3{
			Min: r3.Vector{X: x1, Y: y1, Z: z},
			Max: r3.Vector{X: x2, Y: y2, Z: z},
		},
	}
}

// failingStorage refuses to write files with a given suffix
type failingStorage struct {
	storage.Storage
	failSuffix string
}

func (s *failingStorage) WriteFile(name string) (io.WriteCloser, error) {
	if strings.HasSuffix(name, s.failSuffix) {
		return nil, errors.New("disk full")
	}
	return s.Storage.WriteFile(name)
}
