package runner

import (
	"context"
	"errors"

	"github.com/ironsheep/photobox/internal/model"
)

// BackendStatus is the state of one model backend.
type BackendStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readiness reports whether both model backends can serve requests.
type Readiness struct {
	Ready      bool          `json:"ready"`
	Segmenter  BackendStatus `json:"segmenter"`
	Recognizer BackendStatus `json:"recognizer"`
}

// Ready initializes the model handles if needed and reports their state.
// A failed initialization is retried on the next call. The check is bounded
// by the worker timeout.
func (r *Runner) Ready(ctx context.Context) Readiness {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	seg := backendStatus(ctx, r.opts.Segmenter)
	rec := backendStatus(ctx, r.opts.Recognizer)
	return Readiness{
		Ready:      seg.Ready && rec.Ready,
		Segmenter:  seg,
		Recognizer: rec,
	}
}

func backendStatus[T any](ctx context.Context, h *model.Handle[T]) BackendStatus {
	if h == nil {
		return BackendStatus{Error: "not configured"}
	}
	st := BackendStatus{Name: h.Name()}
	if _, err := h.Get(ctx); err != nil {
		var missing *model.MissingError
		if errors.As(err, &missing) {
			st.Error = missing.Error()
		} else {
			st.Error = err.Error()
		}
		return st
	}
	st.Ready = true
	return st
}
