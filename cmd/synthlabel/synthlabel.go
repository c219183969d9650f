package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/synthlabel/pkg/nn"
	"github.com/cyclopcam/synthlabel/pkg/scene"
	"github.com/cyclopcam/synthlabel/pkg/storage"
	"github.com/cyclopcam/synthlabel/pkg/synth"
	"github.com/cyclopcam/synthlabel/server/datasetdb"
	"github.com/cyclopcam/synthlabel/server/preview"
)

// synthlabel exports YOLO training data from a scene file.
// Example:
//   synthlabel export --scene kitchen.json --out dataset --runs 36 --yawstep 10 --db dataset/manifest.sqlite
//   synthlabel verify --out dataset --db dataset/manifest.sqlite

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// Open the output store. gcs is "bucket" or "bucket/prefix".
func openStorage(logger logs.Log, outDir, gcs string) (storage.Storage, error) {
	if gcs != "" {
		bucket, prefix, _ := strings.Cut(gcs, "/")
		return storage.NewStorageGCS(logger, bucket, prefix)
	}
	return storage.NewStorageFS(logger, outDir)
}

func main() {
	parser := argparse.NewParser("synthlabel", "Export synthetic object detection training data from a 3D scene")

	exportCmd := parser.NewCommand("export", "Render every camera, and write YOLO label and image pairs")
	sceneFile := exportCmd.String("s", "scene", &argparse.Options{Help: "Scene JSON file", Required: true})
	configFile := exportCmd.String("c", "config", &argparse.Options{Help: "Config JSON file", Default: ""})
	outDir := exportCmd.String("o", "out", &argparse.Options{Help: "Output directory (overrides config)", Default: ""})
	gcsPath := exportCmd.String("", "gcs", &argparse.Options{Help: "Write to Google Cloud Storage instead of a directory (bucket or bucket/prefix)", Default: ""})
	margin := exportCmd.Float("", "margin", &argparse.Options{Help: "Visibility margin, as a fraction of the frame", Default: -1.0})
	iou := exportCmd.Float("", "iou", &argparse.Options{Help: "IoU threshold of the diversity pass", Default: -1.0})
	width := exportCmd.Int("", "width", &argparse.Options{Help: "Image width", Default: -1})
	height := exportCmd.Int("", "height", &argparse.Options{Help: "Image height", Default: -1})
	count := exportCmd.Int("n", "count", &argparse.Options{Help: "Maximum labels per frame", Default: -1})
	classesFile := exportCmd.String("", "classes", &argparse.Options{Help: "Text file with one category keyword per line, in class order", Default: ""})
	runs := exportCmd.Int("r", "runs", &argparse.Options{Help: "Number of times to run all cameras", Default: 1})
	yawStep := exportCmd.Float("", "yawstep", &argparse.Options{Help: "Degrees to turn every camera after each run", Default: 0.0})
	exportDB := exportCmd.String("", "db", &argparse.Options{Help: "Manifest database (enables resume and verify)", Default: ""})
	serveAddr := exportCmd.String("", "serve", &argparse.Options{Help: "Run the preview HTTP server on this address (eg :8080), and keep running after the export", Default: ""})

	verifyCmd := parser.NewCommand("verify", "Check the files in storage against the manifest database")
	verifyDB := verifyCmd.String("", "db", &argparse.Options{Help: "Manifest database", Required: true})
	verifyOut := verifyCmd.String("o", "out", &argparse.Options{Help: "Dataset directory", Default: synth.DefaultOutputDir})
	verifyGCS := verifyCmd.String("", "gcs", &argparse.Options{Help: "Dataset in Google Cloud Storage (bucket or bucket/prefix)", Default: ""})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if verifyCmd.Happened() {
		os.Exit(verify(logger, *verifyDB, *verifyOut, *verifyGCS))
	}

	cfg := synth.NewConfig()
	if *configFile != "" {
		cfg, err = synth.LoadConfig(*configFile)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *margin >= 0 {
		cfg.VisibilityMargin = *margin
	}
	if *iou >= 0 {
		cfg.IoUThreshold = float32(*iou)
	}
	if *width > 0 {
		cfg.ImageWidth = *width
	}
	if *height > 0 {
		cfg.ImageHeight = *height
	}
	if *count >= 0 {
		cfg.TargetCount = *count
	}
	if *classesFile != "" {
		cfg.Categories, err = nn.LoadClassFile(*classesFile)
		if err != nil {
			logger.Errorf("Failed to load classes file: %v", err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	sc, pinholes, err := scene.LoadFile(*sceneFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	cams := make([]scene.Camera, 0, len(pinholes))
	for _, c := range pinholes {
		cams = append(cams, c)
	}
	logger.Infof("Loaded %v objects and %v cameras from %v", len(sc.Objects()), len(cams), *sceneFile)

	store, err := openStorage(logger, cfg.OutputDir, *gcsPath)
	if err != nil {
		logger.Errorf("Failed to open output storage: %v", err)
		os.Exit(1)
	}

	exporter, err := synth.NewExporter(logger, cfg, sc, store)
	check(err) // config was already validated

	var db *datasetdb.DatasetDB
	if *exportDB != "" {
		db, err = datasetdb.Open(logger, *exportDB)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.CheckCategories(exporter.Categories().Keywords()); err != nil {
			logger.Errorf("%v: %v", *exportDB, err)
			os.Exit(1)
		}
		next, err := db.NextFrameIndex()
		check(err)
		if next > cfg.FirstFrame {
			logger.Infof("Continuing from frame %v", next)
			exporter.SetNextFrame(next)
		}
		db.Observe(exporter)
	}

	var previewServer *preview.Server
	serverDone := make(chan error, 1)
	if *serveAddr != "" {
		previewServer = preview.New(logger, exporter, store, db)
		go func() {
			serverDone <- previewServer.ListenAndServe(*serveAddr)
		}()
		daemon.SdNotify(false, daemon.SdNotifyReady)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	nErrors := 0
	start := time.Now()
runLoop:
	for run := 0; run < *runs; run++ {
		select {
		case <-interrupt:
			logger.Infof("Interrupted after %v runs", run)
			break runLoop
		default:
		}
		if _, err := exporter.Run(cams); err != nil {
			logger.Errorf("Run %v: %v", run+1, err)
			nErrors++
		}
		if *yawStep != 0 {
			for _, c := range pinholes {
				c.Yaw += *yawStep
			}
		}
	}
	logger.Infof("Export finished in %.1f seconds: %v", time.Since(start).Seconds(), exporter.Stats.Snapshot())

	if previewServer != nil {
		logger.Infof("Preview server is still running. Press Ctrl+C to exit")
		select {
		case <-interrupt:
		case err := <-serverDone:
			if err != nil {
				logger.Errorf("Preview server failed: %v", err)
				nErrors++
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		previewServer.Shutdown(ctx)
		cancel()
	}

	if nErrors != 0 {
		// os.Exit skips deferred calls
		if db != nil {
			db.Close()
		}
		logger.Close()
		os.Exit(1)
	}
}

func verify(logger logs.Log, dbFile, outDir, gcs string) int {
	db, err := datasetdb.Open(logger, dbFile)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	defer db.Close()
	store, err := openStorage(logger, outDir, gcs)
	if err != nil {
		logger.Errorf("Failed to open dataset storage: %v", err)
		return 1
	}
	report, err := db.Verify(store)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	for _, p := range report.Problems {
		fmt.Printf("%v: %v\n", p.File, p.Problem)
	}
	if !report.OK() {
		return 1
	}
	return 0
}
