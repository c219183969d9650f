// Package preview is an HTTP server for looking at a dataset while it is being exported.
package preview

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/cyclopcam/synthlabel/pkg/synth"
	"github.com/cyclopcam/synthlabel/server/datasetdb"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Number of recent frames kept in memory. Must be a power of 2.
const DefaultHistorySize = 64

type Server struct {
	Log        logs.Log
	exporter   *synth.Exporter
	store      storage.Storage
	db         *datasetdb.DatasetDB // May be nil
	router     *httprouter.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader

	historyLock sync.Mutex
	history     ringbuffer.RingP[*synth.Frame]

	clientsLock sync.Mutex
	clients     map[*wsClient]bool
}

// New creates a preview server, and subscribes it to the exporter's frames.
// db is optional.
func New(log logs.Log, exporter *synth.Exporter, store storage.Storage, db *datasetdb.DatasetDB) *Server {
	s := &Server{
		Log:      logs.NewPrefixLogger(log, "Preview:"),
		exporter: exporter,
		store:    store,
		db:       db,
		history:  ringbuffer.NewRingP[*synth.Frame](DefaultHistorySize),
		clients:  map[*wsClient]bool{},
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
	}
	s.setupHttpRoutes()
	exporter.OnFrame(s.onFrame)
	return s
}

// Handler returns the HTTP handler of all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs until Shutdown is called
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Log.Infof("Listening on %v", ln.Addr())
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsLock.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
	s.clientsLock.Unlock()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) onFrame(f *synth.Frame) {
	s.historyLock.Lock()
	s.history.Add(f)
	s.historyLock.Unlock()
	s.broadcast(toFrameJSON(f, s.exporter.Categories()))
}

// Returns recent frames, newest first
func (s *Server) recentFrames(limit int) []*synth.Frame {
	s.historyLock.Lock()
	defer s.historyLock.Unlock()
	n := s.history.Len()
	if limit <= 0 || limit > n {
		limit = n
	}
	frames := make([]*synth.Frame, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		frames = append(frames, s.history.Peek(i))
	}
	return frames
}

func (s *Server) recentFrame(stem string) *synth.Frame {
	for _, f := range s.recentFrames(0) {
		if f.Stem == stem {
			return f
		}
	}
	return nil
}
