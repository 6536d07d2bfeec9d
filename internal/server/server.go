package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/netutil"

	"github.com/ironsheep/dual-ocr/internal/ocr"
	"github.com/ironsheep/dual-ocr/internal/recognizer"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 10 << 20

const shutdownTimeout = 10 * time.Second

// Recognizer runs OCR requests.
type Recognizer interface {
	Recognize(ctx context.Context, req recognizer.Request) (*ocr.Outcome, error)
	EngineVersion() string
	Workers() int
}

// Options configures a Server.
type Options struct {
	// Addr is the host:port to listen on.
	Addr string

	// MaxBodyBytes caps request bodies. Zero selects DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// MaxConnections caps simultaneously open connections. Zero means no cap.
	MaxConnections int

	// AllowedOrigins lists CORS origins. Empty allows every origin.
	AllowedOrigins []string

	// WriteTimeout bounds writing a response. It must exceed the
	// per-pass timeout.
	WriteTimeout time.Duration
}

// Server is the HTTP transport for the recognizer.
type Server struct {
	rec    Recognizer
	opts   Options
	logger *slog.Logger
}

// New creates an HTTP server for rec.
func New(rec Recognizer, opts Options, logger *slog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * ocr.DefaultPassTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{rec: rec, opts: opts, logger: logger}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ocr", s.handleOCR)
	mux.HandleFunc("POST /ocr-dual", s.handleOCRDual)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	s.logger.Info("HTTP server closed")
	return nil
}
