package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/invoicer/internal/ingest"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
)

// DefaultHost is the bind address used when Config.Host is empty.
const DefaultHost = "127.0.0.1"

// Config holds server configuration.
type Config struct {
	Host     string
	Port     int
	AllowAll bool // allow all CORS and WebSocket origins (dev mode)
	// Root is the directory /api/process may read from. Empty means the
	// working directory.
	Root string
	// MaxUploadBytes bounds a multipart upload request as a whole.
	MaxUploadBytes int64
	Ingest         ingest.Config
}

// Server exposes a session's pipeline over HTTP.
type Server struct {
	cfg        Config
	root       string
	upgrader   websocket.Upgrader
	orch       *pipeline.Orchestrator
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server around orch.
func New(cfg Config, orch *pipeline.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 256 << 20
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	root := cfg.Root
	if root == "" {
		root = "."
	}
	s := &Server{cfg: cfg, root: canonicalPath(root), orch: orch, logger: logger}
	if cfg.AllowAll {
		s.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	s.router = s.buildRouter()
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Root returns the absolute directory process requests are confined to.
func (s *Server) Root() string { return s.root }

// confine makes path absolute, resolving relative paths against the root,
// and reports whether the result lies inside the root.
func (s *Server) confine(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = canonicalPath(path)
	return path, within(s.root, path)
}

// canonicalPath returns the absolute, symlink-free form of path. Paths that do
// not exist yet, such as glob patterns, are only made absolute.
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Processing runs the whole batch and can take minutes.
		r.Post("/process", s.handleProcess)
		r.Post("/upload", s.handleUpload)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(2 * time.Minute))
			r.Get("/documents", s.handleDocuments)
			r.Get("/records", s.handleRecords)
			r.Get("/summary", s.handleSummary)
			r.Get("/index", s.handleIndex)
			r.Post("/ask", s.handleAsk)
			r.Get("/quick-questions", s.handleQuickQuestions)
			r.Get("/transcript", s.handleTranscript)
			r.Get("/insights", s.handleInsights)
			r.Get("/export/{format}", s.handleExport)
		})
	})

	r.Get("/ws/chat", s.handleWebSocket)
	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured host and port.
func (s *Server) Start() error {
	addr := s.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("invoicer server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
