package datasetdb

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/synthlabel/pkg/scene"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/cyclopcam/synthlabel/pkg/synth"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	db       *DatasetDB
	dbPath   string
	store    *storage.StorageFS
	exporter *synth.Exporter
	cams     []scene.Camera
}

func newTestRig(t *testing.T) *testRig {
	log := logs.NewTestingLog(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "manifest.sqlite")
	db, err := Open(log, dbPath)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store, err := storage.NewStorageFS(log, filepath.Join(dir, "dataset"))
	require.NoError(t, err)

	sc, err := scene.NewStaticScene([]*scene.Object{
		{ID: 1, Name: "WaterBottle", Bounds: scene.BoxFromCenterSize(r3.Vector{X: 0, Y: 0, Z: 3}, r3.Vector{X: 0.3, Y: 0.6, Z: 0.3})},
		{ID: 2, Name: "ChipsPacket", Bounds: scene.BoxFromCenterSize(r3.Vector{X: 0.8, Y: 0, Z: 4}, r3.Vector{X: 0.4, Y: 0.5, Z: 0.1})},
	})
	require.NoError(t, err)

	cfg := synth.NewConfig()
	cfg.ImageWidth = 48
	cfg.ImageHeight = 27
	e, err := synth.NewExporter(log, cfg, sc, store)
	require.NoError(t, err)
	db.Observe(e)

	return &testRig{
		db:       db,
		dbPath:   dbPath,
		store:    store,
		exporter: e,
		cams:     []scene.Camera{scene.NewPinholeCamera("Main", r3.Vector{}, 0, 0, sc)},
	}
}

func TestRecordAndResume(t *testing.T) {
	rig := newTestRig(t)

	next, err := rig.db.NextFrameIndex()
	require.NoError(t, err)
	require.Equal(t, 0, next)

	for i := 0; i < 2; i++ {
		_, err := rig.exporter.Run(rig.cams)
		require.NoError(t, err)
	}

	n, err := rig.db.NumFrames()
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	next, err = rig.db.NextFrameIndex()
	require.NoError(t, err)
	require.Equal(t, 3, next)

	frames, err := rig.db.Frames(0, 0)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, "frame_0001", frames[0].Stem)
	require.Equal(t, 48, frames[0].ImageWidth)
	require.Equal(t, 2, frames[0].NumObjects)

	dets, err := rig.db.FrameDetections(frames[0].ID)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	require.Equal(t, int64(1), dets[0].ObjectID) // closest first
	require.Equal(t, "WaterBottle", dets[0].ObjectName)
	require.Equal(t, 0, dets[0].Ordinal)

	f, err := rig.db.FrameByStem("frame_0002")
	require.NoError(t, err)
	require.Equal(t, 2, f.FrameIndex)

	frames, err = rig.db.Frames(1, 5)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	// Reopen, and the counter carries on
	rig.db.Close()
	db2, err := Open(logs.NewTestingLog(t), rig.dbPath)
	require.NoError(t, err)
	defer db2.Close()
	next, err = db2.NextFrameIndex()
	require.NoError(t, err)
	require.Equal(t, 3, next)
}

func TestVerify(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.exporter.Run(rig.cams)
	require.NoError(t, err)
	_, err = rig.exporter.Run(rig.cams)
	require.NoError(t, err)

	report, err := rig.db.Verify(rig.store)
	require.NoError(t, err)
	require.True(t, report.OK(), "%v", report.Problems)
	require.Equal(t, 2, report.Frames)

	// Tamper with a label, and leave an orphan behind
	require.NoError(t, storage.WriteFile(rig.store, "frame_0001.txt", bytes.NewReader([]byte("0 0.5 0.5 0.1 0.1\n"))))
	require.NoError(t, storage.WriteFile(rig.store, "frame_0099.txt", bytes.NewReader([]byte("0 0.5 0.5 0.1 0.1\n"))))
	require.NoError(t, rig.store.DeleteFile("frame_0002.png"))

	report, err = rig.db.Verify(rig.store)
	require.NoError(t, err)
	require.False(t, report.OK())
	problems := map[string]string{}
	for _, p := range report.Problems {
		problems[p.File] = p.Problem
	}
	require.Equal(t, "checksum mismatch", problems["frame_0001.txt"])
	require.Contains(t, problems["frame_0002.png"], "read failed")
	require.Equal(t, "not in manifest", problems["frame_0099.txt"])
	require.Len(t, problems, 3)
}

func TestRecordSameStemReplaces(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.exporter.Run(rig.cams)
	require.NoError(t, err)
	rig.exporter.SetNextFrame(1)
	_, err = rig.exporter.Run(rig.cams)
	require.NoError(t, err)

	n, err := rig.db.NumFrames()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	var nDet int64
	require.NoError(t, rig.db.DB.Model(&Detection{}).Count(&nDet).Error)
	require.Equal(t, int64(2), nDet)
}

func TestCheckCategories(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.db.CheckCategories([]string{"chips", "drink"}))
	require.NoError(t, rig.db.CheckCategories([]string{"chips", "drink"}))
	require.ErrorIs(t, rig.db.CheckCategories([]string{"drink", "chips"}), ErrCategoriesChanged)
}
