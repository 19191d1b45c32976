// Package server orchestrates all bridge components: configuration,
// logging, the event loop worker, the stdin/stdout host adapter and the
// HTTP health endpoint.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aribermeki/framebridge/internal/config"
	"github.com/aribermeki/framebridge/pkg/command"
	"github.com/aribermeki/framebridge/pkg/eventloop"
	"github.com/aribermeki/framebridge/pkg/host"
	"github.com/aribermeki/framebridge/pkg/ipc"
)

const logPrefix = "server:server"

// maxInboundLine bounds a single inbound envelope read from stdin.
const maxInboundLine = 16 * 1024 * 1024

// RegisterFunc wires application commands into the registry. It runs
// after the event loop exists so handlers can make outbound calls.
type RegisterFunc func(reg *command.Registry, loop *eventloop.EventLoop) error

// Server is the framebridge orchestrator.
type Server struct {
	cfg        *config.Config
	loop       *eventloop.EventLoop
	reg        *command.Registry
	httpServer *http.Server
}

// Run starts the bridge, blocks until a shutdown signal or host EOF,
// then cleans up: the worker is cancelled, which fails every pending
// entry, and the HTTP server is drained.
func Run(register RegisterFunc) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return fmt.Errorf("%s - invalid config: %w", logPrefix, err)
	}

	setupLogging(cfg.LogLevel)
	slog.Info(fmt.Sprintf("%s - Starting framebridge", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}

	// Step 1: Event loop worker for outbound calls
	s.loop = eventloop.New(eventloop.Options{
		Addr:        cfg.RuntimeAddr(),
		DialTimeout: cfg.DialTimeout,
		CallTimeout: cfg.CallTimeout,
		Yield:       cfg.WorkerYield,
		MaxPending:  cfg.MaxPending,
	})

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.loop.Run(ctx)
	}()
	slog.Info(fmt.Sprintf("%s - Event loop worker started, runtime peer at %s", logPrefix, cfg.RuntimeAddr()))

	// Step 2: Command registry
	s.reg = command.NewRegistry(cfg.SyncPool)
	if register != nil {
		if err := register(s.reg, s.loop); err != nil {
			return fmt.Errorf("%s - failed to register commands: %w", logPrefix, err)
		}
	}
	slog.Info(fmt.Sprintf("%s - Registered %d commands: %v", logPrefix, s.reg.Len(), s.reg.Names()))

	// Step 3: Host adapter: one inbound envelope per stdin line, the
	// resulting script goes to stdout for the host to evaluate.
	decoder := ipc.NewDecoder(s.reg)
	sink := host.NewWriterSink(os.Stdout)

	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), maxInboundLine)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			script := decoder.HandleMessage(ctx, line)
			if err := sink.Eval(ctx, script); err != nil {
				slog.Error(fmt.Sprintf("%s - Host sink failed: %v", logPrefix, err))
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn(fmt.Sprintf("%s - Host input error: %v", logPrefix, err))
		}
	}()

	// Step 4: HTTP health server
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: s.newMux(),
	}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Bridge is ready", logPrefix))

	// Wait for shutdown signal or host EOF
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))
	case <-hostDone:
		slog.Info(fmt.Sprintf("%s - Host input closed, shutting down", logPrefix))
	}

	// Graceful shutdown: cancelling the worker fails all in-flight calls.
	cancel()
	<-workerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	s.httpServer.Shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// newMux builds the health endpoints.
func (s *Server) newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := s.loop.Stats()
		status := "healthy"
		if !stats.WorkerRunning {
			status = "unhealthy"
		}
		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"stats":     stats,
			"commands":  s.reg.Names(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	return mux
}

// setupLogging configures the default slog handler.
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
