// Package core wires the service together: the HTTP API, the analyzer
// client with its local fallback, session storage, replay, and the
// optional MQTT emitter.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/formlab/squatview/internal/analysis"
	"github.com/formlab/squatview/internal/config"
	"github.com/formlab/squatview/internal/emitter"
	"github.com/formlab/squatview/internal/keepalive"
	"github.com/formlab/squatview/internal/store"
	"github.com/formlab/squatview/internal/types"
)

// Service is the main orchestrator
type Service struct {
	cfg *config.Config

	analyzer analysis.Analyzer
	fallback analysis.Analyzer
	sessions *store.Store
	emitter  *emitter.MQTTEmitter
	poller   *keepalive.Poller

	api    *http.Server
	health *http.Server

	started   time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	isRunning bool
}

// NewService creates a service from a configuration file
func NewService(configPath string) (*Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"analyzer", cfg.Analyzer.BaseURL,
		"local_fallback", cfg.Analyzer.LocalFallback,
	)

	sessions, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		sessions: sessions,
	}

	if cfg.Analyzer.BaseURL != "" {
		s.analyzer = analysis.NewClient(cfg.Analyzer.BaseURL,
			time.Duration(cfg.Analyzer.TimeoutS)*time.Second)
		slog.Info("remote analyzer configured", "base_url", cfg.Analyzer.BaseURL)
	}
	if cfg.Analyzer.LocalFallback {
		s.fallback = &analysis.LocalGenerator{}
		slog.Info("local analysis fallback enabled")
	}

	if cfg.MQTT.Broker != "" {
		s.emitter = emitter.NewMQTTEmitter(cfg)
	}

	return s, nil
}

// Run starts the service and blocks until the context is cancelled or a
// server fails.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("squatview service starting", "instance_id", s.cfg.InstanceID)

	// MQTT is optional; a failed connect is degraded, not fatal, because
	// the emitter auto-reconnects in the background.
	if s.emitter != nil {
		if err := s.emitter.Connect(ctx); err != nil {
			slog.Warn("mqtt connect failed, continuing degraded", "error", err)
		}
	}

	if s.cfg.Analyzer.BaseURL != "" && s.cfg.Analyzer.KeepaliveInterval > 0 {
		s.poller = keepalive.NewPoller(s.cfg.Analyzer.BaseURL,
			time.Duration(s.cfg.Analyzer.KeepaliveInterval)*time.Second)
		if err := s.poller.Start(ctx); err != nil {
			return fmt.Errorf("failed to start keepalive poller: %w", err)
		}
	}

	if err := s.startHealthServer(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	errChan := make(chan error, 1)
	s.startAPIServer(errChan)

	slog.Info("squatview service running",
		"api_addr", s.cfg.Server.Addr,
		"health_addr", s.cfg.Server.HealthAddr,
	)

	select {
	case <-ctx.Done():
		slog.Info("squatview service run loop exiting")
		return nil
	case err := <-errChan:
		return fmt.Errorf("api server failed: %w", err)
	}
}

// Shutdown performs graceful shutdown of all components
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	slog.Info("shutting down squatview service")

	// 1. Stop accepting API traffic
	if s.api != nil {
		if err := s.api.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down api server", "error", err)
		}
	}

	// 2. Stop the keepalive poller
	if s.poller != nil {
		s.poller.Stop()
	}

	// 3. Stop the health server last so probes see the drain
	if s.health != nil {
		if err := s.health.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down health server", "error", err)
		}
	}

	slog.Info("waiting for goroutines to finish")
	s.wg.Wait()

	// 4. Disconnect MQTT
	if s.emitter != nil {
		if err := s.emitter.Disconnect(); err != nil {
			slog.Error("failed to disconnect mqtt", "error", err)
		}
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("squatview service stopped")
	return nil
}

// ShutdownTimeout returns the configured graceful shutdown window.
func (s *Service) ShutdownTimeout() time.Duration {
	return time.Duration(s.cfg.ShutdownTimeoutS) * time.Second
}

func (s *Service) startAPIServer(errChan chan<- error) {
	s.api = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.routes(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutS) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutS) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
}

// analyze obtains a document for the uploaded video, falling back to the
// local generator when the remote analyzer is unavailable or fails.
func (s *Service) analyze(ctx context.Context, video *bufferedVideo) (*analysisResult, error) {
	if s.analyzer != nil {
		doc, err := s.analyzer.AnalyzeVideo(ctx, video.Reader(), video.Filename)
		if err == nil {
			return &analysisResult{Document: doc}, nil
		}
		if s.fallback == nil {
			return nil, err
		}
		slog.Warn("remote analysis failed, falling back to local generator",
			"error", err,
			"filename", video.Filename,
		)
	}

	if s.fallback == nil {
		return nil, fmt.Errorf("no analyzer configured")
	}
	doc, err := s.fallback.AnalyzeVideo(ctx, video.Reader(), video.Filename)
	if err != nil {
		return nil, err
	}
	return &analysisResult{Document: doc, Fallback: true}, nil
}

type analysisResult struct {
	Document *types.Document
	Fallback bool
}
