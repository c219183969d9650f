// Package scene is the interface between the label exporter and whatever hosts the 3D world.
//
// A host provides the list of objects (Scene) and one or more cameras (Camera).
// StaticScene and PinholeCamera are a minimal host that is good enough for tests,
// demos, and generating data from hand-written scene files.
package scene

import (
	"errors"
	"fmt"
	"image"

	"github.com/golang/geo/r3"
)

var ErrDuplicateObject = errors.New("duplicate object ID")

// Object is something in the scene that might end up as a labelled detection
type Object struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"` // Used for category matching
	Bounds Box3   `json:"bounds"`
}

// Scene enumerates every object that has renderable bounds.
// The order of enumeration must be stable, because it breaks distance ties.
type Scene interface {
	Objects() []*Object
}

// Camera is a host camera
type Camera interface {
	// Name is used in output filenames when more than one camera is active
	Name() string

	// World-space position of the camera
	Position() r3.Vector

	// WorldToViewport maps a world-space point into the camera's viewport.
	// X and Y are normalized so that the visible frame spans 0..1, with Y growing upwards.
	// Z is the depth in front of the camera. Points behind the camera have Z <= 0.
	WorldToViewport(p r3.Vector) r3.Vector

	// Render the camera into an offscreen image of the given size, and return the pixels
	Render(width, height int) (image.Image, error)
}

// StaticScene is a fixed list of objects
type StaticScene struct {
	objects []*Object
	ids     map[int64]bool
}

func NewStaticScene(objects []*Object) (*StaticScene, error) {
	s := &StaticScene{
		ids: map[int64]bool{},
	}
	for _, obj := range objects {
		if err := s.Add(obj); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends an object to the scene. Object IDs must be unique.
func (s *StaticScene) Add(obj *Object) error {
	if s.ids[obj.ID] {
		return fmt.Errorf("%w: %v (%v)", ErrDuplicateObject, obj.ID, obj.Name)
	}
	if !obj.Bounds.IsValid() {
		return fmt.Errorf("object %v (%v) has invalid bounds", obj.ID, obj.Name)
	}
	s.ids[obj.ID] = true
	s.objects = append(s.objects, obj)
	return nil
}

func (s *StaticScene) Objects() []*Object {
	return s.objects
}
