// Package datasetdb is a manifest of every exported frame.
//
// The manifest lets a new process continue frame numbering where the previous one stopped,
// and lets us verify that the files in storage are the files that we wrote.
package datasetdb

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/synthlabel/pkg/synth"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

var ErrCategoriesChanged = errors.New("category list differs from the one that the dataset was created with")

type DatasetDB struct {
	Log logs.Log
	DB  *gorm.DB
}

func Open(logger logs.Log, dbFilename string) (*DatasetDB, error) {
	logger = logs.NewPrefixLogger(logger, "DatasetDB:")
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &DatasetDB{
		Log: logger,
		DB:  db,
	}, nil
}

func (d *DatasetDB) Close() {
	if sqlDB, err := d.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// Hash returns the hex BLAKE2b-256 digest of a file's content
func Hash(content []byte) string {
	h := blake2b.Sum256(content)
	return hex.EncodeToString(h[:])
}

// CheckCategories stores the category list the first time it is called, and after that
// returns ErrCategoriesChanged if the list is different. Class indices in existing label files
// would be wrong if the list changed.
func (d *DatasetDB) CheckCategories(keywords []string) error {
	joined := strings.Join(keywords, "\n")
	v := Variable{}
	err := d.DB.Where("key = ?", VarCategories).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.DB.Create(&Variable{Key: VarCategories, Value: joined}).Error
	} else if err != nil {
		return err
	}
	if v.Value != joined {
		return ErrCategoriesChanged
	}
	return nil
}

// NextFrameIndex returns one more than the highest frame index in the manifest,
// or zero if the manifest is empty.
func (d *DatasetDB) NextFrameIndex() (int, error) {
	maxIndex := sql.NullInt64{}
	if err := d.DB.Raw("SELECT MAX(frame_index) FROM frame").Row().Scan(&maxIndex); err != nil {
		return 0, err
	}
	if !maxIndex.Valid {
		return 0, nil
	}
	return int(maxIndex.Int64) + 1, nil
}

// RecordFrame adds an exported frame and its detections to the manifest.
// Exporting the same stem again (for example after deleting the manifest's files) replaces the old record.
func (d *DatasetDB) RecordFrame(f *synth.Frame) error {
	width, height := 0, 0
	if f.Image != nil {
		width = f.Image.Bounds().Dx()
		height = f.Image.Bounds().Dy()
	}
	return d.DB.Transaction(func(tx *gorm.DB) error {
		old := Frame{}
		if err := tx.Where("stem = ?", f.Stem).First(&old).Error; err == nil {
			if err := tx.Where("frame_id = ?", old.ID).Delete(&Detection{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&old).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		rec := &Frame{
			FrameIndex:  f.Index,
			Camera:      f.Camera,
			Stem:        f.Stem,
			ExportedAt:  dbh.MakeIntTime(f.ExportedAt),
			LabelHash:   Hash(f.LabelText),
			ImageHash:   Hash(f.PNG),
			ImageWidth:  width,
			ImageHeight: height,
			NumObjects:  len(f.Labels.Objects),
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if len(f.Selections) == 0 {
			return nil
		}
		dets := make([]Detection, 0, len(f.Selections))
		for i, sel := range f.Selections {
			box := f.Labels.Objects[i].Box
			dets = append(dets, Detection{
				FrameID:    rec.ID,
				Ordinal:    i,
				Class:      sel.Class,
				Keyword:    sel.Keyword,
				ObjectID:   sel.Object.ID,
				ObjectName: sel.Object.Name,
				Distance:   sel.Distance,
				X:          box.X,
				Y:          box.Y,
				Width:      box.Width,
				Height:     box.Height,
				Pass:       sel.Pass,
			})
		}
		return tx.Create(&dets).Error
	})
}

// Observe records every frame that the exporter writes
func (d *DatasetDB) Observe(e *synth.Exporter) {
	e.OnFrame(func(f *synth.Frame) {
		if err := d.RecordFrame(f); err != nil {
			d.Log.Errorf("Failed to record %v: %v", f.Stem, err)
		}
	})
}

// Frames returns up to 'limit' frames, ordered by frame index. limit <= 0 means no limit.
func (d *DatasetDB) Frames(offset, limit int) ([]Frame, error) {
	frames := []Frame{}
	q := d.DB.Order("frame_index, id").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&frames).Error; err != nil {
		return nil, err
	}
	return frames, nil
}

// FrameByStem returns gorm.ErrRecordNotFound if there is no such frame
func (d *DatasetDB) FrameByStem(stem string) (*Frame, error) {
	f := Frame{}
	if err := d.DB.Where("stem = ?", stem).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// FrameDetections returns the detections of a frame, in label file order
func (d *DatasetDB) FrameDetections(frameID int64) ([]Detection, error) {
	dets := []Detection{}
	if err := d.DB.Where("frame_id = ?", frameID).Order("ordinal").Find(&dets).Error; err != nil {
		return nil, err
	}
	return dets, nil
}

func (d *DatasetDB) NumFrames() (int64, error) {
	var n int64
	err := d.DB.Model(&Frame{}).Count(&n).Error
	return n, err
}
