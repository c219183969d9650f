package nn

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ImageLabels are the labels of a single exported frame
type ImageLabels struct {
	Frame   int               `json:"frame"`            // Frame index, shared by the label file and the image
	Camera  string            `json:"camera,omitempty"` // Camera that produced the frame
	Objects []ObjectDetection `json:"objects"`
}

// ObjectDetection is one annotated object in an image.
// Box is stored top-down (row 0 at the top of the image), which is what YOLO label files expect.
type ObjectDetection struct {
	Class int  `json:"class"`
	Box   Rect `json:"box"`
}

// NewDetectionFromViewport creates a detection from a bottom-up viewport rectangle.
func NewDetectionFromViewport(class int, viewport Rect) ObjectDetection {
	return ObjectDetection{
		Class: class,
		Box:   viewport.FlipY(),
	}
}

// YOLOLine formats the detection as "<class> <cx> <cy> <width> <height>"
func (d ObjectDetection) YOLOLine() string {
	cx := float64(d.Box.X) + float64(d.Box.Width)/2
	cy := float64(d.Box.Y) + float64(d.Box.Height)/2
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", d.Class, cx, cy, d.Box.Width, d.Box.Height)
}

// YOLO returns the label file contents. One line per object, each terminated by a newline.
func (l *ImageLabels) YOLO() string {
	s := strings.Builder{}
	for _, obj := range l.Objects {
		s.WriteString(obj.YOLOLine())
		s.WriteByte('\n')
	}
	return s.String()
}

// ParseYOLO reads a YOLO label file.
// Blank lines are ignored. Anything else that isn't 5 numeric fields is an error.
func ParseYOLO(r io.Reader) ([]ObjectDetection, error) {
	objects := []ObjectDetection{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, fmt.Errorf("line %v: expected 5 fields, but found %v", lineNo, len(fields))
		}
		class, err := strconv.Atoi(fields[0])
		if err != nil || class < 0 {
			return nil, fmt.Errorf("line %v: invalid class index '%v'", lineNo, fields[0])
		}
		var v [4]float32
		for i := 0; i < 4; i++ {
			f, err := strconv.ParseFloat(fields[i+1], 32)
			if err != nil {
				return nil, fmt.Errorf("line %v: %w", lineNo, err)
			}
			v[i] = float32(f)
		}
		objects = append(objects, ObjectDetection{
			Class: class,
			Box: Rect{
				X:      v[0] - v[2]/2,
				Y:      v[1] - v[3]/2,
				Width:  v[2],
				Height: v[3],
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return objects, nil
}
