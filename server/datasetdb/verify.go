package datasetdb

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/cyclopcam/synthlabel/pkg/synth"
)

// Label files hold 6 decimals
const labelTolerance = 2e-6

// Problem is something wrong with one file in the dataset
type Problem struct {
	File    string `json:"file"`
	Problem string `json:"problem"`
}

type VerifyReport struct {
	Frames   int       `json:"frames"` // Number of frames in the manifest
	Problems []Problem `json:"problems"`
}

func (r *VerifyReport) OK() bool {
	return len(r.Problems) == 0
}

func (r *VerifyReport) add(file, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{File: file, Problem: fmt.Sprintf(format, args...)})
}

// Verify reads back every file in the manifest, and checks that it still matches what was
// written. It also reports files in storage that the manifest doesn't know about, such as the
// label file that is left behind when an image write fails.
// Problems with the dataset are returned in the report. The error is only for failures that
// stop verification from running at all.
func (d *DatasetDB) Verify(store storage.Storage) (*VerifyReport, error) {
	frames, err := d.Frames(0, 0)
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{
		Frames: len(frames),
	}
	known := map[string]bool{}

	for i := range frames {
		f := &frames[i]
		known[f.LabelFile()] = true
		known[f.ImageFile()] = true

		label, err := storage.ReadFile(store, f.LabelFile())
		if err != nil {
			report.add(f.LabelFile(), "read failed: %v", err)
		} else if Hash(label) != f.LabelHash {
			report.add(f.LabelFile(), "checksum mismatch")
		} else if err := d.verifyLabels(f, label); err != nil {
			report.add(f.LabelFile(), "%v", err)
		}

		img, err := storage.ReadFile(store, f.ImageFile())
		if err != nil {
			report.add(f.ImageFile(), "read failed: %v", err)
		} else if Hash(img) != f.ImageHash {
			report.add(f.ImageFile(), "checksum mismatch")
		}
	}

	files, err := store.List(synth.FramePrefix)
	if err != nil {
		return nil, fmt.Errorf("Failed to list files in %v: %w", store, err)
	}
	for _, name := range files {
		if !known[name] && (strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".png")) {
			report.add(name, "not in manifest")
		}
	}

	if report.OK() {
		d.Log.Infof("Verified %v frames in %v", report.Frames, store)
	} else {
		d.Log.Warnf("Found %v problems in %v frames in %v", len(report.Problems), report.Frames, store)
	}
	return report, nil
}

// Check that the label file parses back into the detections that we recorded
func (d *DatasetDB) verifyLabels(f *Frame, label []byte) error {
	parsed, err := nn.ParseYOLO(bytes.NewReader(label))
	if err != nil {
		return err
	}
	dets, err := d.FrameDetections(f.ID)
	if err != nil {
		return err
	}
	if len(parsed) != len(dets) {
		return fmt.Errorf("%v labels in file, but %v in manifest", len(parsed), len(dets))
	}
	for i := range dets {
		a := parsed[i]
		b := dets[i].Box()
		if a.Class != dets[i].Class {
			return fmt.Errorf("line %v: class %v, but manifest has %v", i+1, a.Class, dets[i].Class)
		}
		if math32.Abs(a.Box.X-b.X) > labelTolerance ||
			math32.Abs(a.Box.Y-b.Y) > labelTolerance ||
			math32.Abs(a.Box.Width-b.Width) > labelTolerance ||
			math32.Abs(a.Box.Height-b.Height) > labelTolerance {
			return fmt.Errorf("line %v: box %v differs from manifest %v", i+1, a.Box, b)
		}
	}
	return nil
}
