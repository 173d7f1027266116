package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ironsheep/photobox/internal/runner"
	"github.com/ironsheep/photobox/internal/worker"
	"github.com/sirupsen/logrus"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it zero.
const DefaultMaxBodyBytes = 20 << 20

// shutdownGrace is how long Run waits for in-flight requests on shutdown.
const shutdownGrace = 10 * time.Second

// Processor runs the image operations behind the routes.
type Processor interface {
	RemoveBackground(ctx context.Context, data []byte, bgHex string) ([]byte, error)
	ExtractText(ctx context.Context, data []byte) (*worker.OCRResult, error)
	Ready(ctx context.Context) runner.Readiness
}

// Options configures a Server.
type Options struct {
	MaxBodyBytes int64
	Log          logrus.FieldLogger
}

// Server handles PhotoBox HTTP requests.
type Server struct {
	proc    Processor
	maxBody int64
	log     logrus.FieldLogger
	handler http.Handler
}

// New creates a server backed by proc.
func New(proc Processor, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	s := &Server{
		proc:    proc,
		maxBody: opts.MaxBodyBytes,
		log:     opts.Log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("POST /remove-background", s.handleRemoveBackground)
	mux.HandleFunc("POST /ocr", s.handleOCR)
	for _, path := range []string{"/compress", "/api/compress"} {
		mux.HandleFunc("POST "+path, s.handleCompress)
		mux.HandleFunc(path, s.handleCompressMethod)
	}
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = s.withRequestID(s.withLogging(s.withRecover(withCORS(mux))))
	return s
}

// Handler returns the server's root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
