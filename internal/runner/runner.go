// Package runner invokes the PhotoBox workers for the HTTP front door.
//
// In "process" isolation each request spawns "photobox worker ..." with a
// timeout, passing the image through temp files (background removal) or
// stdin (OCR). In "inprocess" isolation the worker functions are called
// directly under the same timeout. Either way a semaphore caps how many
// workers run at once; callers queue on their request context.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/model"
	"github.com/ironsheep/photobox/internal/ocr"
	"github.com/ironsheep/photobox/internal/segment"
	"github.com/ironsheep/photobox/internal/worker"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Isolation modes.
const (
	ModeProcess   = "process"
	ModeInProcess = "inprocess"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxWorkers = 4
)

// Options configures a Runner.
type Options struct {
	// Mode is ModeProcess or ModeInProcess.
	Mode string

	// Timeout bounds each worker invocation.
	Timeout time.Duration

	// MaxWorkers caps concurrent worker invocations.
	MaxWorkers int64

	// WorkerBin is the executable spawned in process mode, normally the
	// running photobox binary. WorkerArgs are inserted before "worker".
	WorkerBin  string
	WorkerArgs []string

	// Env is appended to the worker process environment.
	Env []string

	// Confidence is reported with OCR results in inprocess mode.
	Confidence float64

	// Segmenter and Recognizer back inprocess mode and Ready.
	Segmenter  *model.Handle[segment.Segmenter]
	Recognizer *model.Handle[ocr.Recognizer]

	Log logrus.FieldLogger
}

// Runner runs workers with isolation, timeout and a concurrency cap.
type Runner struct {
	opts Options
	sem  *semaphore.Weighted
	log  logrus.FieldLogger
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Mode == "" {
		opts.Mode = ModeProcess
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.Confidence == 0 {
		opts.Confidence = worker.DefaultConfidence
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	switch opts.Mode {
	case ModeProcess:
		if opts.WorkerBin == "" {
			bin, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("failed to locate worker binary: %w", err)
			}
			opts.WorkerBin = bin
		}
	case ModeInProcess:
		if opts.Segmenter == nil || opts.Recognizer == nil {
			return nil, errors.New("inprocess mode needs a segmenter and a recognizer")
		}
	default:
		return nil, fmt.Errorf("unknown isolation mode %q", opts.Mode)
	}

	return &Runner{
		opts: opts,
		sem:  semaphore.NewWeighted(opts.MaxWorkers),
		log:  opts.Log.WithField("isolation", opts.Mode),
	}, nil
}

// Mode returns the isolation mode.
func (r *Runner) Mode() string {
	return r.opts.Mode
}

// RemoveBackground replaces the background of an encoded image with bgHex
// and returns an opaque PNG.
//
// The color and the image header are validated before a worker is started.
func (r *Runner) RemoveBackground(ctx context.Context, data []byte, bgHex string) ([]byte, error) {
	if _, err := imaging.ParseHexColor(bgHex); err != nil {
		return nil, worker.Invalid("", err)
	}
	info, err := imaging.Inspect(data)
	if err != nil {
		return nil, worker.Invalid("", err)
	}
	r.log.WithFields(logrus.Fields{
		"format": info.Format,
		"width":  info.Width,
		"height": info.Height,
		"bytes":  info.SizeBytes,
	}).Debug("background removal requested")

	var out []byte
	err = r.run(ctx, worker.CmdRemoveBackground, func(ctx context.Context) error {
		var err error
		if r.opts.Mode == ModeInProcess {
			out, err = r.removeBackgroundInProcess(ctx, data, bgHex)
		} else {
			out, err = r.removeBackgroundProcess(ctx, data, bgHex)
		}
		return err
	})
	return out, err
}

// ExtractText recognizes the text in an encoded image.
func (r *Runner) ExtractText(ctx context.Context, data []byte) (*worker.OCRResult, error) {
	if len(data) == 0 {
		return nil, worker.Invalid("", imaging.ErrEmptyPayload)
	}

	var res *worker.OCRResult
	err := r.run(ctx, worker.CmdOCR, func(ctx context.Context) error {
		var err error
		if r.opts.Mode == ModeInProcess {
			res, err = r.extractTextInProcess(ctx, data)
		} else {
			res, err = r.extractTextProcess(ctx, data)
		}
		return err
	})
	return res, err
}

// run holds a worker slot and the timeout around fn.
func (r *Runner) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := r.log.WithField("operation", op)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return worker.Failed("request canceled while waiting for a worker", err)
	}
	defer r.sem.Release(1)

	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	err := fn(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		err = worker.Failed(fmt.Sprintf("worker timed out after %s", r.opts.Timeout), nil)
	}

	log = log.WithField("duration", time.Since(start).Round(time.Millisecond).String())
	if err != nil {
		log.WithError(err).WithField("kind", worker.KindOf(err).String()).Warn("worker failed")
		return err
	}
	log.Debug("worker completed")
	return nil
}

func (r *Runner) removeBackgroundInProcess(ctx context.Context, data []byte, bgHex string) ([]byte, error) {
	seg, err := r.opts.Segmenter.Get(ctx)
	if err != nil {
		return nil, worker.Classify("failed to initialize segmenter", err)
	}
	return worker.RemoveBackground(ctx, seg, data, bgHex)
}

func (r *Runner) extractTextInProcess(ctx context.Context, data []byte) (*worker.OCRResult, error) {
	rec, err := r.opts.Recognizer.Get(ctx)
	if err != nil {
		return nil, worker.Classify("failed to initialize recognizer", err)
	}
	return worker.ExtractText(ctx, rec, data, r.opts.Confidence)
}
