package preview

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/synthlabel/pkg/scene"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/cyclopcam/synthlabel/pkg/synth"
	"github.com/cyclopcam/synthlabel/server/datasetdb"
	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	server   *Server
	http     *httptest.Server
	exporter *synth.Exporter
	cams     []scene.Camera
}

func newTestRig(t *testing.T, withDB bool) *testRig {
	log := logs.NewTestingLog(t)
	dir := t.TempDir()
	store, err := storage.NewStorageFS(log, filepath.Join(dir, "dataset"))
	require.NoError(t, err)

	sc, err := scene.NewStaticScene([]*scene.Object{
		{ID: 1, Name: "Apple", Bounds: scene.BoxFromCenterSize(r3.Vector{X: 0, Y: 0, Z: 3}, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})},
	})
	require.NoError(t, err)
	cfg := synth.NewConfig()
	cfg.ImageWidth = 64
	cfg.ImageHeight = 36
	e, err := synth.NewExporter(log, cfg, sc, store)
	require.NoError(t, err)

	var db *datasetdb.DatasetDB
	if withDB {
		db, err = datasetdb.Open(log, filepath.Join(dir, "manifest.sqlite"))
		require.NoError(t, err)
		t.Cleanup(db.Close)
		db.Observe(e)
	}

	s := New(log, e, store, db)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return &testRig{
		server:   s,
		http:     hs,
		exporter: e,
		cams:     []scene.Camera{scene.NewPinholeCamera("Main", r3.Vector{}, 0, 0, sc)},
	}
}

func (r *testRig) get(t *testing.T, path string) (*http.Response, []byte) {
	resp, err := http.Get(r.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestFrameEndpoints(t *testing.T) {
	rig := newTestRig(t, true)
	_, err := rig.exporter.Run(rig.cams)
	require.NoError(t, err)

	resp, body := rig.get(t, "/api/status")
	require.Equal(t, 200, resp.StatusCode)
	status := statusJSON{}
	require.NoError(t, json.Unmarshal(body, &status))
	require.Equal(t, 2, status.NextFrame)
	require.Equal(t, int64(1), status.Stats.Frames)

	resp, body = rig.get(t, "/api/frames")
	require.Equal(t, 200, resp.StatusCode)
	frames := []frameJSON{}
	require.NoError(t, json.Unmarshal(body, &frames))
	require.Len(t, frames, 1)
	require.Equal(t, "frame_0001", frames[0].Stem)
	require.Equal(t, "apple", frames[0].Objects[0].Keyword)

	resp, body = rig.get(t, "/api/frame/frame_0001/labels")
	require.Equal(t, 200, resp.StatusCode)
	require.True(t, strings.HasPrefix(string(body), "9 0.500000 0.500000 "), string(body))

	resp, body = rig.get(t, "/api/frame/frame_0001/image")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.Equal(t, "\x89PNG", string(body[:4]))

	resp, body = rig.get(t, "/api/frame/frame_0001/overlay")
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	require.Equal(t, []byte{0xff, 0xd8}, body[:2])

	resp, _ = rig.get(t, "/api/frame/frame_0001/thumbnail?width=32")
	require.Equal(t, 200, resp.StatusCode)

	resp, _ = rig.get(t, "/api/frame/frame_0099/labels")
	require.Equal(t, 404, resp.StatusCode)

	// classes.txt exists in the dataset, but it is not a frame
	resp, _ = rig.get(t, "/api/frame/classes/labels")
	require.Equal(t, 404, resp.StatusCode)
	resp, _ = rig.get(t, "/api/frame/classes/overlay")
	require.Equal(t, 404, resp.StatusCode)

	resp, body = rig.get(t, "/api/manifest")
	require.Equal(t, 200, resp.StatusCode)
	manifest := []map[string]any{}
	require.NoError(t, json.Unmarshal(body, &manifest))
	require.Len(t, manifest, 1)
	require.Equal(t, "frame_0001", manifest[0]["stem"])
}

func TestFramesFromStorage(t *testing.T) {
	rig := newTestRig(t, false)
	_, err := rig.exporter.Run(rig.cams)
	require.NoError(t, err)

	// A second preview server on the same exporter has no history, so it reads storage
	other := New(logs.NewTestingLog(t), rig.exporter, rig.server.store, nil)
	require.Nil(t, other.recentFrame("frame_0001"))
	hs := httptest.NewServer(other.Handler())
	defer hs.Close()

	resp, err := http.Get(hs.URL + "/api/frame/frame_0001/overlay")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp, _ = rig.get(t, "/api/manifest")
	require.Equal(t, 400, resp.StatusCode)
}

func TestWebSocketPush(t *testing.T) {
	rig := newTestRig(t, false)
	url := "ws" + strings.TrimPrefix(rig.http.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the server to register the viewer
	require.Eventually(t, func() bool {
		rig.server.clientsLock.Lock()
		defer rig.server.clientsLock.Unlock()
		return len(rig.server.clients) == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = rig.exporter.Run(rig.cams)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg := frameJSON{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, 1, msg.Index)
	require.Equal(t, "Main", msg.Camera)
	require.Len(t, msg.Objects, 1)
}
