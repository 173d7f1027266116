package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// importProbe prints the comma-separated subset of its arguments that fail
// to import.
const importProbe = `import importlib, sys
missing = []
for name in sys.argv[1:]:
    try:
        importlib.import_module(name)
    except Exception:
        missing.append(name)
print(",".join(missing))
`

// pipeDrain bounds how long RunPython waits on output pipes held open by
// the interpreter's own children after it is killed.
const pipeDrain = time.Second

// lookPath is exec.LookPath; tests replace it to simulate a missing interpreter.
var lookPath = exec.LookPath

// PythonModule names a module to import and the package that provides it,
// e.g. {Import: "PIL", Package: "Pillow"}.
type PythonModule struct {
	Import  string
	Package string
}

// ProbePython checks that python is runnable and every module imports.
//
// Returns a *MissingError naming the interpreter or the packages that are
// absent, or a plain error if the probe itself could not run.
func ProbePython(ctx context.Context, python string, modules ...PythonModule) error {
	if _, err := lookPath(python); err != nil {
		return Missing(python)
	}

	args := []string{"-c", importProbe}
	for _, m := range modules {
		args = append(args, m.Import)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, python, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to probe python modules: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil
	}

	byImport := make(map[string]string, len(modules))
	for _, m := range modules {
		byImport[m.Import] = m.Package
	}
	var missing []string
	for _, name := range strings.Split(out, ",") {
		if pkg, ok := byImport[name]; ok && pkg != "" {
			missing = append(missing, pkg)
		} else {
			missing = append(missing, name)
		}
	}
	return Missing(missing...)
}

// RunPython runs an inline script with stdin as input and returns its stdout.
//
// A non-zero exit becomes an *ExitError carrying the exit code and the
// trimmed stderr text.
func RunPython(ctx context.Context, python, script string, stdin []byte, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, python, append([]string{"-c", script}, args...)...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeDrain

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(stderr.String()),
			}
		}
		return nil, fmt.Errorf("failed to start %s: %w", python, err)
	}
	return stdout.Bytes(), nil
}

// ExitError is a model process that exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("model process exited with status %d", e.Code)
	}
	return fmt.Sprintf("model process exited with status %d: %s", e.Code, e.Stderr)
}

// CheckWeights logs the state of a model weights file. A missing or
// undersized file is a warning, never an error: the model library may still
// download or locate the weights itself.
func CheckWeights(log logrus.FieldLogger, path string, minBytes int64) {
	if path == "" {
		return
	}
	entry := log.WithField("weights", path)

	info, err := os.Stat(path)
	if err != nil {
		entry.Warn("model weights not found; the model library will try to load or download them")
		return
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	entry = entry.WithField("size_mb", fmt.Sprintf("%.1f", sizeMB))
	if info.Size() < minBytes {
		entry.Warn("model weights may be incomplete")
		return
	}
	entry.Debug("model weights available")
}
