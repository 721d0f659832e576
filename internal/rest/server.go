// Package rest serves the diagnostics engine over HTTP.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meshdiag/internal/api"
	"meshdiag/internal/diag"
	"meshdiag/internal/metrics"
	"meshdiag/internal/model"
	"meshdiag/internal/store"
)

const (
	registryFile = "registry.yaml"
	historyFile  = "diagnostics.csv"
)

// Options configures a Server. Zero values take defaults.
type Options struct {
	Listen          string
	DataDir         string
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	// NodeTTL drops registry nodes absent from snapshots for longer
	// than this. Zero keeps them forever.
	NodeTTL  time.Duration
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.PromObs
}

// Server provides the diagnostics HTTP API.
type Server struct {
	engine      *diag.Engine
	opts        Options
	log         *slog.Logger
	regPath     string
	historyPath string

	mu  sync.Mutex
	reg *store.Registry
	// historyMu serializes appends to the history CSV.
	historyMu sync.Mutex

	router *gin.Engine
	http   *http.Server
}

// NewServer loads the node registry from opts.DataDir and registers
// the routes.
func NewServer(engine *diag.Engine, opts Options) (*Server, error) {
	if engine == nil {
		return nil, errors.New("diagnostics engine is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = diag.DefaultPollInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine: engine,
		opts:   opts,
		log:    opts.Logger,
	}
	if opts.DataDir != "" {
		s.regPath = filepath.Join(opts.DataDir, registryFile)
		s.historyPath = filepath.Join(opts.DataDir, historyFile)
	}
	s.reg = &store.Registry{}
	if s.regPath != "" {
		reg, err := store.LoadRegistry(s.regPath)
		if err != nil {
			return nil, err
		}
		s.reg = reg
	}
	if opts.Metrics != nil {
		opts.Metrics.SetRegistryNodes(len(s.reg.Nodes))
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.logRequests())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/diagnostics", s.handleDiagnostics)
	s.router.POST("/diagnostics/collections", s.handleStartCollection)
	s.router.GET("/diagnostics/collections/:id", s.handlePollCollection)
	s.router.GET("/nodes", s.handleNodes)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the HTTP server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("diagnostics api listening", "addr", s.opts.Listen)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, waiting up to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// record folds a completed snapshot into the node registry and the
// history CSV. Failures are logged; the snapshot is still served.
func (s *Server) record(snap diag.Snapshot) {
	nodes := make([]model.Node, 0, len(snap.Entries))
	var rows []model.DiagnosticRow
	for _, e := range snap.Entries {
		nodes = append(nodes, model.NodeFromRecord(e.Key, e.Record, snap.TakenAt.UTC()))
		r, err := model.RowsFromRecord(snap.TakenAt, e.Key, e.Record)
		if err != nil {
			s.log.Warn("flatten diagnostics", "key", e.Key, "err", err)
			continue
		}
		rows = append(rows, r...)
	}

	s.mu.Lock()
	s.reg.Merge(nodes)
	if s.opts.NodeTTL > 0 {
		if n := s.reg.Prune(snap.TakenAt.UTC().Add(-s.opts.NodeTTL)); n > 0 {
			s.log.Info("pruned stale nodes", "count", n)
		}
	}
	count := len(s.reg.Nodes)
	var err error
	if s.regPath != "" {
		err = store.SaveRegistry(s.regPath, s.reg)
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("save node registry", "err", err)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetRegistryNodes(count)
	}

	if s.historyPath == "" || len(rows) == 0 {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	if err := metrics.AppendCSV(s.historyPath, rows); err != nil {
		s.log.Warn("append diagnostics history", "err", err)
	}
}

func (s *Server) nodes() api.NodesResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := api.NodesResponse{Nodes: append([]store.NodeInfo{}, s.reg.Nodes...)}
	if !s.reg.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.reg.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
