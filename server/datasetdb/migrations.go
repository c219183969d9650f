package datasetdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE frame(
			id INTEGER PRIMARY KEY,
			frame_index INT NOT NULL,
			camera TEXT NOT NULL,
			stem TEXT NOT NULL,
			exported_at INT NOT NULL,
			label_hash TEXT NOT NULL,
			image_hash TEXT NOT NULL,
			image_width INT NOT NULL,
			image_height INT NOT NULL,
			num_objects INT NOT NULL
		);
		CREATE UNIQUE INDEX idx_frame_stem ON frame (stem);
		CREATE INDEX idx_frame_frame_index ON frame (frame_index);

		CREATE TABLE detection(
			id INTEGER PRIMARY KEY,
			frame_id INT NOT NULL,
			ordinal INT NOT NULL,
			class INT NOT NULL,
			keyword TEXT NOT NULL,
			object_id INT NOT NULL,
			object_name TEXT NOT NULL,
			distance REAL NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			pass INT NOT NULL
		);
		CREATE INDEX idx_detection_frame_id ON detection (frame_id);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE variable(
			key TEXT PRIMARY KEY,
			value TEXT
		);
	`))

	return migs
}
