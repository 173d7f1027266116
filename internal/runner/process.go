package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/ironsheep/photobox/internal/imaging"
	"github.com/ironsheep/photobox/internal/worker"
)

// waitDelay is how long a worker has to exit after SIGTERM before it is
// killed.
const waitDelay = 2 * time.Second

// errUnparseable is the message for an OCR worker whose stdout is not a JSON
// envelope.
const errUnparseable = "Failed to parse OCR worker output"

// envelope is the JSON line printed by the worker subcommands.
type envelope struct {
	Success    bool     `json:"success"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Error      string   `json:"error"`
}

// exitFailure is a worker that exited non-zero.
type exitFailure struct {
	code   int
	stdout []byte
	stderr string
}

func (e *exitFailure) Error() string {
	return fmt.Sprintf("worker exited with status %d", e.code)
}

func (r *Runner) removeBackgroundProcess(ctx context.Context, data []byte, bgHex string) ([]byte, error) {
	in, err := writeTemp("photobox-in-*.img", data)
	if err != nil {
		return nil, err
	}
	defer removeQuietly(in)

	out, err := writeTemp("photobox-out-*.png", nil)
	if err != nil {
		return nil, err
	}
	defer removeQuietly(out)

	if _, err := r.spawn(ctx, nil, worker.CmdRemoveBackground, in, out, bgHex); err != nil {
		return nil, r.workerError(err, "")
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, worker.Failed("failed to read worker output", err)
	}
	if len(png) == 0 {
		return nil, worker.Failed("worker produced no output", nil)
	}
	return png, nil
}

func (r *Runner) extractTextProcess(ctx context.Context, data []byte) (*worker.OCRResult, error) {
	payload, err := json.Marshal(map[string]string{"image": imaging.EncodeBase64(data)})
	if err != nil {
		return nil, worker.Failed("failed to encode worker input", err)
	}

	stdout, err := r.spawn(ctx, payload, worker.CmdOCR)
	var exit *exitFailure
	if errors.As(err, &exit) {
		stdout = exit.stdout
	} else if err != nil {
		return nil, err
	}

	env, ok := parseEnvelope(stdout)
	if err != nil {
		fallback := ""
		if ok {
			fallback = env.Error
		}
		return nil, r.workerError(err, fallback)
	}
	if !env.Success {
		return nil, r.classifyMessage(env.Error)
	}

	confidence := r.opts.Confidence
	if env.Confidence != nil {
		confidence = *env.Confidence
	}
	return &worker.OCRResult{Success: true, Text: env.Text, Confidence: confidence}, nil
}

// spawn runs "<bin> [args...] worker <args...>" and returns its stdout. A
// non-zero exit is an *exitFailure; anything else is already classified.
func (r *Runner) spawn(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	argv := make([]string, 0, len(r.opts.WorkerArgs)+1+len(args))
	argv = append(argv, r.opts.WorkerArgs...)
	argv = append(argv, "worker")
	argv = append(argv, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.opts.WorkerBin, argv...)
	cmd.Env = append(os.Environ(), r.opts.Env...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// SIGTERM lets the worker cancel its own context, which kills the model
	// process it started. WaitDelay escalates to SIGKILL.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	r.log.WithField("args", strings.Join(args, " ")).Debug("spawning worker")

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctx.Err() != nil {
		return nil, worker.Failed("worker interrupted", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &exitFailure{
			code:   exitErr.ExitCode(),
			stdout: stdout.Bytes(),
			stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return nil, worker.Failed("failed to start worker", err)
}

// workerError turns a spawn error into a classified error. For an exit
// failure the message is the worker's stderr, else fallback, else the exit
// status.
func (r *Runner) workerError(err error, fallback string) error {
	var exit *exitFailure
	if !errors.As(err, &exit) {
		return err
	}
	msg := exit.stderr
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		msg = exit.Error()
	}
	return r.classifyMessage(msg)
}

// classifyMessage maps a worker's error text to a Kind.
func (r *Runner) classifyMessage(msg string) error {
	if msg == "" {
		msg = "worker failed"
	}
	if strings.HasPrefix(msg, "Missing dependencies:") {
		return worker.Missing(errors.New(msg))
	}
	return worker.Failed(msg, nil)
}

// parseEnvelope reads the worker's JSON line. Output that is not a JSON
// object yields the generic parse-failure envelope and false.
func parseEnvelope(stdout []byte) (envelope, bool) {
	var env envelope
	trimmed := bytes.TrimSpace(stdout)
	if !bytes.HasPrefix(trimmed, []byte("{")) || json.Unmarshal(trimmed, &env) != nil {
		return envelope{Success: false, Error: errUnparseable}, false
	}
	return env, true
}

// writeTemp creates a temp file holding data and returns its path.
func writeTemp(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", worker.Failed("failed to create temp file", err)
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		removeQuietly(f.Name())
		return "", worker.Failed("failed to write temp file", err)
	}
	return f.Name(), nil
}

// removeQuietly removes path, ignoring errors including absence.
func removeQuietly(path string) {
	_ = os.Remove(path)
}
