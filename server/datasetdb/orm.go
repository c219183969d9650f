package datasetdb

import (
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/synthlabel/pkg/nn"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Frame is one exported label+image pair
type Frame struct {
	BaseModel
	FrameIndex  int         `json:"frameIndex"`
	Camera      string      `json:"camera"`
	Stem        string      `json:"stem"` // Filename without extension
	ExportedAt  dbh.IntTime `json:"exportedAt"`
	LabelHash   string      `json:"labelHash"` // Hex BLAKE2b-256 of the label file
	ImageHash   string      `json:"imageHash"` // Hex BLAKE2b-256 of the PNG file
	ImageWidth  int         `json:"imageWidth"`
	ImageHeight int         `json:"imageHeight"`
	NumObjects  int         `json:"numObjects"`
}

func (f *Frame) LabelFile() string {
	return f.Stem + ".txt"
}

func (f *Frame) ImageFile() string {
	return f.Stem + ".png"
}

// Detection is one line of a label file, plus the scene object that it came from
type Detection struct {
	BaseModel
	FrameID    int64   `json:"frameId"`
	Ordinal    int     `json:"ordinal"` // Line number in the label file, starting at 0
	Class      int     `json:"class"`
	Keyword    string  `json:"keyword"`
	ObjectID   int64   `json:"objectId"`
	ObjectName string  `json:"objectName"`
	Distance   float64 `json:"distance"`
	X          float32 `json:"x"` // Box, stored top-down like the label file
	Y          float32 `json:"y"`
	Width      float32 `json:"width"`
	Height     float32 `json:"height"`
	Pass       int     `json:"pass"` // Selection pass that accepted the object
}

func (d *Detection) Box() nn.Rect {
	return nn.Rect{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height}
}

// Key/value pairs that describe the whole dataset
type Variable struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

const (
	VarCategories = "categories" // Newline separated category keywords, in class order
)
