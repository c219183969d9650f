package synth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/scene"
	"github.com/cyclopcam/synthlabel/pkg/storage"
)

// Status is the outcome of exporting one camera
type Status int

const (
	StatusExported     Status = iota // Label and image written
	StatusNoCandidates               // No visible object matched a category
	StatusNoSelection                // There were candidates, but none were selected
	StatusFailed                     // I/O, render or encode error
)

func (s Status) String() string {
	switch s {
	case StatusExported:
		return "exported"
	case StatusNoCandidates:
		return "no candidates"
	case StatusNoSelection:
		return "no selection"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// CameraReport is the result of one camera in one run
type CameraReport struct {
	Camera     string
	Status     Status
	Frame      int    // Frame index, if Status == StatusExported
	Stem       string // Filename stem, if Status == StatusExported
	Candidates int
	Detections int
	Err        error
}

// RunReport is the result of Exporter.Run
type RunReport struct {
	Cameras []CameraReport
}

// Exported returns the number of frames written
func (r *RunReport) Exported() int {
	n := 0
	for _, c := range r.Cameras {
		if c.Status == StatusExported {
			n++
		}
	}
	return n
}

// Exporter runs the label extraction pipeline for a set of cameras, and writes the results
// into storage. It is not safe to call Run from more than one goroutine at a time.
type Exporter struct {
	Log   logs.Log
	Stats Stats

	config        *Config
	categories    *nn.Categories
	scene         scene.Scene
	emitter       *Emitter
	counter       *FrameCounter
	wroteClasses  bool
	observersLock sync.Mutex
	observers     []func(*Frame)
}

// NewExporter validates the config and creates an exporter that writes into store
func NewExporter(log logs.Log, config *Config, sc scene.Scene, store storage.Storage) (*Exporter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cats, err := nn.NewCategories(config.Categories)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		Log:        logs.NewPrefixLogger(log, "Exporter:"),
		config:     config,
		categories: cats,
		scene:      sc,
		emitter: &Emitter{
			Store:  store,
			Width:  config.ImageWidth,
			Height: config.ImageHeight,
		},
		counter: NewFrameCounter(config.FirstFrame),
	}, nil
}

func (e *Exporter) Categories() *nn.Categories {
	return e.categories
}

func (e *Exporter) Config() *Config {
	return e.config
}

// NextFrame returns the index that the next exported frame will get. Safe to call from any goroutine.
func (e *Exporter) NextFrame() int {
	return e.counter.Peek()
}

// SetNextFrame is used to continue numbering from a previous export
func (e *Exporter) SetNextFrame(next int) {
	e.counter.Reset(next)
}

// OnFrame adds a function that is called after every exported frame.
// The frame must be treated as read-only.
func (e *Exporter) OnFrame(f func(*Frame)) {
	e.observersLock.Lock()
	defer e.observersLock.Unlock()
	e.observers = append(e.observers, f)
}

func (e *Exporter) notify(frame *Frame) {
	e.observersLock.Lock()
	observers := append([]func(*Frame){}, e.observers...)
	e.observersLock.Unlock()
	for _, f := range observers {
		f(frame)
	}
}

// classes.txt is written together with the first frame, so that an export which finds
// nothing leaves storage untouched.
func (e *Exporter) writeClassFileOnce() error {
	if e.wroteClasses {
		return nil
	}
	if err := e.emitter.WriteClassFile(e.categories); err != nil {
		return err
	}
	e.wroteClasses = true
	return nil
}

// Run exports one frame per camera.
// Cameras are processed in order, and share a single frame counter, which advances
// once for every camera that produces a frame. A camera without any labels is logged and
// skipped. An error on one camera does not stop the remaining cameras, and all errors are
// returned together.
func (e *Exporter) Run(cams []scene.Camera) (*RunReport, error) {
	report := &RunReport{}
	multiCamera := len(cams) > 1
	var errs []error
	for _, cam := range cams {
		r := e.ExportCamera(cam, multiCamera)
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
		report.Cameras = append(report.Cameras, r)
	}
	return report, errors.Join(errs...)
}

// ExportCamera runs the whole pipeline for a single camera.
// multiCamera adds the camera name to the output filenames.
func (e *Exporter) ExportCamera(cam scene.Camera, multiCamera bool) CameraReport {
	report := CameraReport{
		Camera: cam.Name(),
	}

	start := time.Now()
	candidates := CollectCandidates(e.scene, cam, e.config.VisibilityMargin, e.categories)
	e.Stats.update(func(s *Stats) { s.Collect.AddSample(time.Since(start)) })
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		e.Log.Infof("Camera '%v': no candidates", cam.Name())
		report.Status = StatusNoCandidates
		e.Stats.update(func(s *Stats) { s.NoCandidates++ })
		return report
	}

	start = time.Now()
	selection := SelectDetections(cam, candidates, e.config.TargetCount, e.config.IoUThreshold)
	e.Stats.update(func(s *Stats) { s.Select.AddSample(time.Since(start)) })
	report.Detections = len(selection)
	if len(selection) == 0 {
		e.Log.Warnf("Camera '%v': %v candidates, but none selected", cam.Name(), len(candidates))
		report.Status = StatusNoSelection
		e.Stats.update(func(s *Stats) { s.NoSelection++ })
		return report
	}

	index := e.counter.Peek()
	frame := &Frame{
		Index:      index,
		Camera:     cam.Name(),
		Stem:       FrameStem(index, cam.Name(), multiCamera),
		Labels:     NewImageLabels(index, cam.Name(), selection),
		Selections: selection,
	}
	err := e.writeClassFileOnce()
	if err == nil {
		err = e.emitter.Emit(cam, frame, &e.Stats)
	}
	if err != nil {
		e.Log.Errorf("Camera '%v': %v", cam.Name(), err)
		report.Status = StatusFailed
		report.Err = fmt.Errorf("camera '%v': %w", cam.Name(), err)
		e.Stats.update(func(s *Stats) { s.Failed++ })
		return report
	}
	e.counter.Advance()

	e.Log.Infof("Camera '%v': wrote %v with %v labels (%v candidates)", cam.Name(), frame.Stem, len(selection), len(candidates))
	report.Status = StatusExported
	report.Frame = index
	report.Stem = frame.Stem
	e.Stats.update(func(s *Stats) {
		s.Frames++
		s.Detections += int64(len(selection))
	})
	e.notify(frame)
	return report
}
