package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/golang/geo/r3"
)

// File is the on-disk JSON description of a scene
type File struct {
	Cameras []FileCamera `json:"cameras"`
	Objects []FileObject `json:"objects"`
}

type FileCamera struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
	Yaw      float64    `json:"yaw"`    // Degrees
	Pitch    float64    `json:"pitch"`  // Degrees
	FovY     float64    `json:"fovY"`   // Degrees (default 60)
	Aspect   float64    `json:"aspect"` // Width / Height (default 16/9)
}

// FileObject specifies bounds either with min+max, or with center+size
type FileObject struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Min    *[3]float64 `json:"min,omitempty"`
	Max    *[3]float64 `json:"max,omitempty"`
	Center *[3]float64 `json:"center,omitempty"`
	Size   *[3]float64 `json:"size,omitempty"`
}

func vec(v [3]float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func (o *FileObject) bounds() (Box3, error) {
	switch {
	case o.Min != nil && o.Max != nil:
		return Box3{Min: vec(*o.Min), Max: vec(*o.Max)}, nil
	case o.Center != nil && o.Size != nil:
		return BoxFromCenterSize(vec(*o.Center), vec(*o.Size)), nil
	}
	return Box3{}, errors.New("bounds need either min and max, or center and size")
}

// LoadFile reads a scene file, and returns the scene and its cameras.
// The cameras render the returned scene.
func LoadFile(filename string) (*StaticScene, []*PinholeCamera, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("Error loading scene %v: %w", filename, err)
	}
	sc, cams, err := Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("Error loading scene %v: %w", filename, err)
	}
	return sc, cams, nil
}

// Parse decodes a JSON scene description
func Parse(raw []byte) (*StaticScene, []*PinholeCamera, error) {
	f := File{}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, err
	}

	sc, _ := NewStaticScene(nil)
	for i := range f.Objects {
		fo := &f.Objects[i]
		b, err := fo.bounds()
		if err != nil {
			return nil, nil, fmt.Errorf("object %v (%v): %w", fo.ID, fo.Name, err)
		}
		if err := sc.Add(&Object{ID: fo.ID, Name: fo.Name, Bounds: b}); err != nil {
			return nil, nil, err
		}
	}

	cams := []*PinholeCamera{}
	names := map[string]bool{}
	for i, fc := range f.Cameras {
		name := fc.Name
		if name == "" {
			name = fmt.Sprintf("Camera %v", i+1)
		}
		if names[name] {
			return nil, nil, fmt.Errorf("camera name '%v' is used more than once", name)
		}
		names[name] = true
		cam := NewPinholeCamera(name, vec(fc.Position), fc.Yaw, fc.Pitch, sc)
		if fc.FovY != 0 {
			cam.FovY = fc.FovY
		}
		if fc.Aspect != 0 {
			cam.Aspect = fc.Aspect
		}
		if err := cam.Validate(); err != nil {
			return nil, nil, err
		}
		cams = append(cams, cam)
	}
	if len(cams) == 0 {
		return nil, nil, errors.New("scene has no cameras")
	}

	return sc, cams, nil
}
