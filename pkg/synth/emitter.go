package synth

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/scene"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/fogleman/gg"
)

// ClassFile lists the category keywords, one per line, in class index order
const ClassFile = "classes.txt"

// Every label and image filename starts with FramePrefix
const FramePrefix = "frame_"

// Frame is one exported label+image pair
type Frame struct {
	Index      int
	Camera     string
	Stem       string // Filename without extension, shared by the label and image files
	Labels     nn.ImageLabels
	Selections SelectionResult
	Image      image.Image
	LabelText  []byte
	PNG        []byte
	ExportedAt time.Time
}

func (f *Frame) LabelFile() string {
	return f.Stem + ".txt"
}

func (f *Frame) ImageFile() string {
	return f.Stem + ".png"
}

var cameraNameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")

// SanitizeCameraName makes a camera name safe to use inside a filename
func SanitizeCameraName(name string) string {
	return cameraNameReplacer.Replace(name)
}

// FrameStem returns "frame_0001", or "frame_0001_<camera>" when more than one camera is active
func FrameStem(index int, camera string, multiCamera bool) string {
	stem := fmt.Sprintf("%v%04d", FramePrefix, index)
	if multiCamera {
		stem += "_" + SanitizeCameraName(camera)
	}
	return stem
}

// NewImageLabels converts selections into stored (top-down) labels
func NewImageLabels(frame int, camera string, sel SelectionResult) nn.ImageLabels {
	labels := nn.ImageLabels{
		Frame:   frame,
		Camera:  camera,
		Objects: make([]nn.ObjectDetection, 0, len(sel)),
	}
	for _, s := range sel {
		labels.Objects = append(labels.Objects, nn.NewDetectionFromViewport(s.Class, s.Box))
	}
	return labels
}

// EncodePNG losslessly encodes an image
func EncodePNG(img image.Image) ([]byte, error) {
	buf := bytes.Buffer{}
	if err := gg.NewContextForImage(img).EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Emitter writes frames into storage
type Emitter struct {
	Store  storage.Storage
	Width  int
	Height int
}

// Emit writes the label file, then renders the camera and writes the image.
// If anything fails after the label file is written, the label file is left behind without
// an image. The reverse (an image without a label file) never happens.
func (e *Emitter) Emit(cam scene.Camera, frame *Frame, stats *Stats) error {
	frame.LabelText = []byte(frame.Labels.YOLO())

	start := time.Now()
	if err := storage.WriteFile(e.Store, frame.LabelFile(), bytes.NewReader(frame.LabelText)); err != nil {
		return fmt.Errorf("Failed to write %v: %w", frame.LabelFile(), err)
	}
	writeTime := time.Since(start)

	start = time.Now()
	img, err := cam.Render(e.Width, e.Height)
	if err != nil {
		return fmt.Errorf("Failed to render camera '%v': %w", cam.Name(), err)
	}
	frame.Image = img
	frame.PNG, err = EncodePNG(img)
	if err != nil {
		return fmt.Errorf("Failed to encode %v: %w", frame.ImageFile(), err)
	}
	renderTime := time.Since(start)

	start = time.Now()
	if err := storage.WriteFile(e.Store, frame.ImageFile(), bytes.NewReader(frame.PNG)); err != nil {
		return fmt.Errorf("Failed to write %v: %w", frame.ImageFile(), err)
	}
	writeTime += time.Since(start)

	frame.ExportedAt = time.Now()
	stats.update(func(s *Stats) {
		s.Render.AddSample(renderTime)
		s.Write.AddSample(writeTime)
	})
	return nil
}

// WriteClassFile writes classes.txt
func (e *Emitter) WriteClassFile(cats *nn.Categories) error {
	buf := bytes.Buffer{}
	if err := cats.WriteClassFile(&buf); err != nil {
		return err
	}
	if err := storage.WriteFile(e.Store, ClassFile, &buf); err != nil {
		return fmt.Errorf("Failed to write %v: %w", ClassFile, err)
	}
	return nil
}
