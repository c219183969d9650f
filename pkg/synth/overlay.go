package synth

import (
	"fmt"
	"image"
	"image/color"

	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

var overlayColors = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 132, G: 56, B: 255, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 255, G: 149, B: 200, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
}

// DrawOverlay returns a copy of img with every labelled box and its class name drawn on top.
// Boxes are drawn first and captions last, so that captions are never hidden by another box.
func DrawOverlay(img image.Image, labels *nn.ImageLabels, cats *nn.Categories) image.Image {
	dc := gg.NewContextForImage(img)
	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	dc.SetFontFace(basicfont.Face7x13)
	lineWidth := max(1, w/640)

	for _, obj := range labels.Objects {
		dc.SetColor(overlayColors[obj.Class%len(overlayColors)])
		dc.SetLineWidth(lineWidth)
		dc.DrawRectangle(float64(obj.Box.X)*w, float64(obj.Box.Y)*h, float64(obj.Box.Width)*w, float64(obj.Box.Height)*h)
		dc.Stroke()
	}

	for _, obj := range labels.Objects {
		text := cats.Keyword(obj.Class)
		if text == "" {
			text = fmt.Sprintf("class %v", obj.Class)
		}
		tw, th := dc.MeasureString(text)
		x := float64(obj.Box.X) * w
		y := max(th+4, float64(obj.Box.Y)*h)
		dc.SetColor(overlayColors[obj.Class%len(overlayColors)])
		dc.DrawRectangle(x, y-th-4, tw+4, th+4)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawString(text, x+2, y-3)
	}

	return dc.Image()
}
