package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/cyclopcam/synthlabel/pkg/synth"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

const (
	jpegQuality       = 85
	defaultThumbWidth = 320
	maxThumbWidth     = 1920
)

type objectJSON struct {
	Class    int     `json:"class"`
	Keyword  string  `json:"keyword"`
	ObjectID int64   `json:"objectId"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Box      nn.Rect `json:"box"` // Top-down, like the label file
	Pass     int     `json:"pass"`
}

type frameJSON struct {
	Index      int          `json:"index"`
	Camera     string       `json:"camera"`
	Stem       string       `json:"stem"`
	ExportedAt time.Time    `json:"exportedAt"`
	Objects    []objectJSON `json:"objects"`
}

func toFrameJSON(f *synth.Frame, cats *nn.Categories) *frameJSON {
	j := &frameJSON{
		Index:      f.Index,
		Camera:     f.Camera,
		Stem:       f.Stem,
		ExportedAt: f.ExportedAt,
		Objects:    make([]objectJSON, 0, len(f.Selections)),
	}
	for i, sel := range f.Selections {
		j.Objects = append(j.Objects, objectJSON{
			Class:    sel.Class,
			Keyword:  cats.Keyword(sel.Class),
			ObjectID: sel.Object.ID,
			Name:     sel.Object.Name,
			Distance: sel.Distance,
			Box:      f.Labels.Objects[i].Box,
			Pass:     sel.Pass,
		})
	}
	return j
}

type statusJSON struct {
	NextFrame  int                 `json:"nextFrame"`
	Categories []string            `json:"categories"`
	Stats      synth.StatsSnapshot `json:"stats"`
	Storage    string              `json:"storage"`
}

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Image endpoints do real work (decode, draw, compress), so we limit them per client
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/status", s.httpStatus)
	handle("GET", "/api/frames", s.httpRecentFrames)
	handle("GET", "/api/manifest", s.httpManifest)
	handle("GET", "/api/frame/:stem/labels", s.httpFrameLabels)
	ratelimited("GET", "/api/frame/:stem/image", s.httpFrameImage, 30, time.Second)
	ratelimited("GET", "/api/frame/:stem/overlay", s.httpFrameOverlay, 30, time.Second)
	ratelimited("GET", "/api/frame/:stem/thumbnail", s.httpFrameThumbnail, 60, time.Second)
	handle("GET", "/api/ws", s.httpWebSocket)

	s.router = router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendOK(w)
}

func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	www.SendJSON(w, &statusJSON{
		NextFrame:  s.exporter.NextFrame(),
		Categories: s.exporter.Categories().Keywords(),
		Stats:      s.exporter.Stats.Snapshot(),
		Storage:    s.store.String(),
	})
}

// Frames exported by this process, newest first
func (s *Server) httpRecentFrames(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	cats := s.exporter.Categories()
	frames := []*frameJSON{}
	for _, f := range s.recentFrames(int(www.QueryInt(r, "limit"))) {
		frames = append(frames, toFrameJSON(f, cats))
	}
	www.SendJSON(w, frames)
}

// Frames from the manifest database, including previous runs
func (s *Server) httpManifest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.db == nil {
		www.PanicBadRequestf("No manifest database")
	}
	www.CacheNever(w)
	frames, err := s.db.Frames(int(www.QueryInt(r, "offset")), int(www.QueryInt(r, "limit")))
	www.Check(err)
	www.SendJSON(w, frames)
}

func sendNotFound(w http.ResponseWriter, stem string) {
	http.Error(w, fmt.Sprintf("Frame %v not found", stem), http.StatusNotFound)
}

// Only frame files are served. Other files in the dataset (eg classes.txt) are not frames.
func isFrameStem(stem string) bool {
	return strings.HasPrefix(stem, synth.FramePrefix)
}

// Labels come from memory if the frame is recent, otherwise from storage.
// Returns nil if the frame doesn't exist.
func (s *Server) loadLabels(stem string) *nn.ImageLabels {
	if !isFrameStem(stem) {
		return nil
	}
	if f := s.recentFrame(stem); f != nil {
		return &f.Labels
	}
	raw, err := storage.ReadFile(s.store, stem+".txt")
	if err != nil {
		return nil
	}
	objects, err := nn.ParseYOLO(bytes.NewReader(raw))
	www.Check(err)
	return &nn.ImageLabels{Objects: objects}
}

// Returns nil if the image doesn't exist
func (s *Server) loadPNG(stem string) []byte {
	if !isFrameStem(stem) {
		return nil
	}
	if f := s.recentFrame(stem); f != nil {
		return f.PNG
	}
	raw, err := storage.ReadFile(s.store, stem+".png")
	if err != nil {
		return nil
	}
	return raw
}

// Returns nil if the image doesn't exist
func (s *Server) loadImage(stem string) image.Image {
	if f := s.recentFrame(stem); f != nil && f.Image != nil {
		return f.Image
	}
	raw := s.loadPNG(stem)
	if raw == nil {
		return nil
	}
	img, err := png.Decode(bytes.NewReader(raw))
	www.Check(err)
	return img
}

func (s *Server) httpFrameLabels(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	stem := params.ByName("stem")
	labels := s.loadLabels(stem)
	if labels == nil {
		sendNotFound(w, stem)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(labels.YOLO()))
}

func (s *Server) httpFrameImage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	stem := params.ByName("stem")
	raw := s.loadPNG(stem)
	if raw == nil {
		sendNotFound(w, stem)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(raw)
}

func (s *Server) httpFrameOverlay(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	stem := params.ByName("stem")
	labels := s.loadLabels(stem)
	img := s.loadImage(stem)
	if labels == nil || img == nil {
		sendNotFound(w, stem)
		return
	}
	sendJPEG(w, toCImage(synth.DrawOverlay(img, labels, s.exporter.Categories())))
}

func (s *Server) httpFrameThumbnail(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	stem := params.ByName("stem")
	width := int(www.QueryInt(r, "width"))
	if width <= 0 {
		width = defaultThumbWidth
	}
	if width > maxThumbWidth {
		www.PanicBadRequestf("width may not exceed %v", maxThumbWidth)
	}
	img := s.loadImage(stem)
	if img == nil {
		sendNotFound(w, stem)
		return
	}
	src := toCImage(img)
	height := max(1, src.Height*width/src.Width)
	sendJPEG(w, cimg.ResizeNew(src, width, height, nil))
}

func (s *Server) httpWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("Websocket upgrade failed: %v", err)
		return
	}
	s.Log.Infof("Websocket viewer %v connected", conn.RemoteAddr())
	s.serveClient(s.addClient(conn))
	s.Log.Infof("Websocket viewer %v disconnected", conn.RemoteAddr())
}

func sendJPEG(w http.ResponseWriter, img *cimg.Image) {
	jpg, err := cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling420, jpegQuality, 0))
	if err != nil {
		www.PanicServerErrorf("Failed to compress image to JPEG: %v", err)
	}
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%v", len(jpg)))
	w.Write(jpg)
}

// Copy any image into an RGB cimg.Image
func toCImage(img image.Image) *cimg.Image {
	b := img.Bounds()
	dst := cimg.NewImage(b.Dx(), b.Dy(), cimg.PixelFormatRGB)
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pixels[y*dst.Stride : y*dst.Stride+b.Dx()*3]
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x*3] = uint8(r >> 8)
			row[x*3+1] = uint8(g >> 8)
			row[x*3+2] = uint8(bl >> 8)
		}
	}
	return dst
}
