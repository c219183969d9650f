package synth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cyclopcam/synthlabel/pkg/nn"
)

const (
	DefaultVisibilityMargin = 0.05
	DefaultIoUThreshold     = 0.1
	DefaultImageWidth       = 1920
	DefaultImageHeight      = 1080
	DefaultTargetCount      = 5
	DefaultOutputDir        = "dataset"

	// During the backfill pass, a box is only rejected if it is a near-perfect
	// duplicate of a box that has already been accepted.
	BackfillIoUThreshold = 0.99
)

var ErrInvalidConfig = errors.New("invalid config")

// Config controls a dataset export
type Config struct {
	VisibilityMargin float64  `json:"visibilityMargin"` // Object centers must be inside [margin, 1-margin] of the viewport
	IoUThreshold     float32  `json:"iouThreshold"`     // Maximum IoU with an accepted box, during the diversity pass
	ImageWidth       int      `json:"imageWidth"`
	ImageHeight      int      `json:"imageHeight"`
	TargetCount      int      `json:"targetCount"` // Maximum number of labels per frame
	Categories       []string `json:"categories"`  // Order defines the class index
	OutputDir        string   `json:"outputDir"`
	FirstFrame       int      `json:"firstFrame"` // Index of the first frame written by a fresh export
}

// NewConfig returns a config with all defaults populated
func NewConfig() *Config {
	return &Config{
		VisibilityMargin: DefaultVisibilityMargin,
		IoUThreshold:     DefaultIoUThreshold,
		ImageWidth:       DefaultImageWidth,
		ImageHeight:      DefaultImageHeight,
		TargetCount:      DefaultTargetCount,
		Categories:       append([]string(nil), nn.DefaultEdibleKeywords...),
		OutputDir:        DefaultOutputDir,
		FirstFrame:       1,
	}
}

// LoadConfig reads a JSON config file.
// Fields that are missing from the file keep their default values.
func LoadConfig(filename string) (*Config, error) {
	cfg := NewConfig()
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading config %v: %w", filename, err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error parsing config %v: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.VisibilityMargin < 0 || c.VisibilityMargin > 0.5 {
		return fmt.Errorf("%w: visibilityMargin %v must be between 0 and 0.5", ErrInvalidConfig, c.VisibilityMargin)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("%w: iouThreshold %v must be between 0 and 1", ErrInvalidConfig, c.IoUThreshold)
	}
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return fmt.Errorf("%w: image size %v x %v must be positive", ErrInvalidConfig, c.ImageWidth, c.ImageHeight)
	}
	if c.TargetCount < 0 {
		return fmt.Errorf("%w: targetCount %v may not be negative", ErrInvalidConfig, c.TargetCount)
	}
	if c.FirstFrame < 1 {
		return fmt.Errorf("%w: firstFrame %v must be 1 or more", ErrInvalidConfig, c.FirstFrame)
	}
	if _, err := nn.NewCategories(c.Categories); err != nil {
		return fmt.Errorf("%w: categories: %w", ErrInvalidConfig, err)
	}
	return nil
}
