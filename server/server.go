package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ctfer-io/chore-server/global"
	"github.com/ctfer-io/chore-server/pkg/cors"
	"github.com/ctfer-io/chore-server/pkg/fs"
)

const (
	// DefaultMaxBodySize is the replace body limit when none is configured.
	DefaultMaxBodySize int64 = 1 << 20

	StatePath = "/api/chore-state"
)

// Store is the persistence the API server reads and replaces the chore
// state through. *fs.Store implements it.
type Store interface {
	Load(ctx context.Context) (fs.Document, error)
	Save(ctx context.Context, doc fs.Document) error
	Directory() string
}

// Server is a helper to manage the API Server.
type Server struct {
	Options

	router chi.Router
	http   *http.Server
}

// Options to configure it once for all.
type Options struct {
	// Host to bind, empty for all interfaces.
	Host string
	Port int
	// MaxBodySize of a replace call, in bytes.
	MaxBodySize int64

	Store  Store
	Policy *cors.Policy
}

// NewServer returns a fresh API server. Store and Policy are required.
func NewServer(opts Options) *Server {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	s := &Server{
		Options: opts,
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Run the API server in backend.
// It returns once the listener is bound, serving happens in a goroutine
// until Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	logger := global.Log()
	logger.Info(ctx, "api-server start listening",
		zap.String("address", s.Addr()),
	)
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}

	s.http = &http.Server{
		Handler:           otelhttp.NewHandler(s, "chore-server"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully stops a running server, waiting for in-flight
// requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(contextualize)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.Policy.Handler)

	r.Get("/", s.handleLiveness)
	r.Method(http.MethodGet, "/healthz", healthcheck(s.Store.Directory()))

	r.Get(StatePath, s.handleFetch)
	r.Post(StatePath, s.handleReplace)

	return r
}
