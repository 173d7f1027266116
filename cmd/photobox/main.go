package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/photobox/internal/config"
	"github.com/ironsheep/photobox/internal/function"
	"github.com/ironsheep/photobox/internal/logging"
	"github.com/ironsheep/photobox/internal/model"
	"github.com/ironsheep/photobox/internal/ocr"
	"github.com/ironsheep/photobox/internal/runner"
	"github.com/ironsheep/photobox/internal/segment"
	"github.com/ironsheep/photobox/internal/server"
	"github.com/ironsheep/photobox/internal/worker"
	"github.com/sirupsen/logrus"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `photobox - background removal and OCR service

Usage:
  photobox serve                       Run the HTTP service
  photobox worker remove-background <input> <output> <bg_color>
  photobox worker remove-background --stdin
  photobox worker ocr                  Read a base64 image from stdin
  photobox invoke                      Handle one serverless event from stdin

Options:
  --version, -v    Print version information
  --help, -h       Print this help message

Environment variables (also read from ./.env):
  PORT, PHOTOBOX_ADDR           Listen address (default :8000)
  PHOTOBOX_ISOLATION            process | inprocess (default process)
  PHOTOBOX_WORKER_TIMEOUT       Per-request worker timeout (default 30s)
  PHOTOBOX_MAX_WORKERS          Concurrent workers (default 4)
  PHOTOBOX_SEGMENTER            rembg | chromakey (default rembg)
  PHOTOBOX_OCR_ENGINE           rapidocr | tesseract (default rapidocr)
  PHOTOBOX_PYTHON               Python interpreter (default python3)
  PHOTOBOX_TEMP_DIR             Directory for temp files
  PHOTOBOX_LOG_LEVEL=debug      Enable debug logging
  PHOTOBOX_LOG_FORMAT=json      Log as JSON
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("photobox %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		fmt.Print(usage)
		return
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyTempDir(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "serve":
		code = serve(ctx, cfg, log)
	case "worker":
		code = runWorker(ctx, cfg, log, os.Args[2:])
	case "invoke":
		code = invoke(ctx, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		code = 2
	}
	stop()
	os.Exit(code)
}

// handles builds the lazily initialized model handles named by cfg.
func handles(cfg *config.Config, log logrus.FieldLogger) (*model.Handle[segment.Segmenter], *model.Handle[ocr.Recognizer], error) {
	seg, err := segment.New(cfg.Segmenter, segment.Options{
		Python:      cfg.Python,
		WeightsPath: cfg.U2NetPath,
		Log:         log,
	})
	if err != nil {
		return nil, nil, err
	}
	rec, err := ocr.New(cfg.OCREngine, ocr.Options{
		Python:   cfg.Python,
		Language: cfg.OCRLang,
		Log:      log,
	})
	if err != nil {
		return nil, nil, err
	}
	return seg, rec, nil
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) int {
	log.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"segmenter": cfg.Segmenter,
		"ocr":       cfg.OCREngine,
	}).Info("starting photobox")

	seg, rec, err := handles(cfg, log)
	if err != nil {
		log.WithError(err).Error("invalid model configuration")
		return 1
	}

	r, err := runner.New(runner.Options{
		Mode:       cfg.Isolation,
		Timeout:    cfg.WorkerTimeout,
		MaxWorkers: cfg.MaxWorkers,
		WorkerBin:  cfg.WorkerBin,
		// Worker stderr becomes the client-facing error, so keep it to errors.
		Env:        []string{"PHOTOBOX_LOG_LEVEL=error"},
		Confidence: cfg.Confidence,
		Segmenter:  seg,
		Recognizer: rec,
		Log:        log,
	})
	if err != nil {
		log.WithError(err).Error("failed to create worker runner")
		return 1
	}

	srv := server.New(r, server.Options{MaxBodyBytes: cfg.MaxBodyBytes, Log: log})
	log.WithFields(logrus.Fields{"addr": cfg.Addr, "isolation": r.Mode()}).Info("listening")
	if err := srv.Run(ctx, cfg.Addr); err != nil {
		log.WithError(err).Error("server error")
		return 1
	}
	log.Info("shut down")
	return 0
}

func runWorker(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) int {
	seg, rec, err := handles(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cli := &worker.CLI{
		Segmenter:  seg,
		Recognizer: rec,
		Confidence: cfg.Confidence,
		Log:        log,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
	return cli.Run(ctx, args)
}

func invoke(ctx context.Context, log *logrus.Logger) int {
	var ev function.Event
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read event: %v\n", err)
		return 1
	}
	h := &function.Handler{Log: log}
	if err := json.NewEncoder(os.Stdout).Encode(h.Handle(ctx, ev)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write response: %v\n", err)
		return 1
	}
	return 0
}
