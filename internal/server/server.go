// Package server exposes the matching pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/pipeline"
	"github.com/spigell/resume-matcher/internal/profile"
)

const (
	defaultAddress         = ":8000"
	defaultMaxUploadBytes  = 10 << 20
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

// Pipeline is the part of pipeline.Service the handlers need.
type Pipeline interface {
	ProcessUpload(ctx context.Context, filename string, r io.Reader) (*pipeline.Report, error)
	Match(ctx context.Context, p profile.Profile, jobs []catalog.JobPosting) ([]matching.Result, error)
	Jobs() []catalog.JobPosting
	Health() pipeline.Health
}

type Config struct {
	Address        string   `mapstructure:"address"`
	MaxUploadBytes int64    `mapstructure:"max-upload-bytes"`
	RateLimit      float64  `mapstructure:"rate-limit"`
	RateBurst      int      `mapstructure:"rate-burst"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`

	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

func (c *Config) setDefaults() {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

type Server struct {
	cfg        Config
	svc        Pipeline
	logger     *zap.Logger
	validate   *validator.Validate
	limiter    *clientLimiter
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config, svc Pipeline, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return nil, fmt.Errorf("rate limit and burst must not be negative, got %v/%d", cfg.RateLimit, cfg.RateBurst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.setDefaults()

	s := &Server{
		cfg:      cfg,
		svc:      svc,
		logger:   logger,
		validate: newValidator(),
		limiter:  newClientLimiter(cfg.RateLimit, cfg.RateBurst, time.Now),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload-resume", s.handleUploadResume)
	mux.HandleFunc("POST /match-jobs", s.handleMatchJobs)
	mux.HandleFunc("GET /jobs", s.handleJobs)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withRequestID(s.withLogging(s.withCORS(s.withRateLimit(mux))))
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  2 * cfg.ReadTimeout,
	}

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}
