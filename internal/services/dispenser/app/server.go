// Package server wires the dispenser runtime: webhook intake, the worker
// pool behind it, slot resolution, relay actuation, and the gRPC health
// endpoint deploy scripts probe before routing traffic to a machine.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
	"github.com/ieee-uottawa/vending-machine/internal/platform/timeouts"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/actuator"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/catalog"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/domain"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/guard"
	guardsqlite "github.com/ieee-uottawa/vending-machine/internal/services/dispenser/guard/sqlite"
	transporthttp "github.com/ieee-uottawa/vending-machine/internal/services/dispenser/transport/http"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config controls dispenser startup and dependencies.
type Config struct {
	WebhookPort    int
	HealthPort     int
	SquareToken    string
	SquareBaseURL  string
	SquareTimeout  time.Duration
	DispenseDwell  time.Duration
	SlotLayoutPath string
	LedgerPath     string
	QueueSize      int
	Workers        int
	GPIODryRun     bool
}

// Server hosts the dispenser: the webhook HTTP server, the dispatch worker
// pool, and the gRPC health endpoint.
type Server struct {
	webhookListener net.Listener
	httpServer      *http.Server
	healthListener  net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	dispatcher      *Dispatcher
	lines           gpio.Lines
	ledger          io.Closer // nil when the in-memory guard is used
}

// New creates a configured dispenser server listening on the configured
// ports.
func New(cfg Config) (*Server, error) {
	return NewWithAddrs(cfg, fmt.Sprintf(":%d", cfg.WebhookPort), fmt.Sprintf(":%d", cfg.HealthPort))
}

// NewWithAddrs creates a configured dispenser server for the provided
// listen addresses, ignoring the ports in cfg.
func NewWithAddrs(cfg Config, webhookAddr, healthAddr string) (*Server, error) {
	slots := domain.DefaultSlotMap()
	if path := strings.TrimSpace(cfg.SlotLayoutPath); path != "" {
		loaded, err := domain.LoadSlotLayout(path)
		if err != nil {
			return nil, err
		}
		slots = loaded
		log.Printf("loaded %d slots from %s", loaded.Len(), path)
	}

	client, err := catalog.NewClient(catalog.Config{
		AccessToken: cfg.SquareToken,
		BaseURL:     cfg.SquareBaseURL,
		Timeout:     cfg.SquareTimeout,
	})
	if err != nil {
		return nil, err
	}

	lines, err := gpio.Open(cfg.GPIODryRun)
	if err != nil {
		return nil, fmt.Errorf("open relay lines: %w", err)
	}
	if cfg.GPIODryRun {
		log.Printf("gpio dry run enabled, relay activity is simulated")
	}

	admissions, ledger, err := openAdmissionStore(cfg.LedgerPath)
	if err != nil {
		_ = lines.Close()
		return nil, err
	}

	orchestrator := NewOrchestrator(OrchestratorDeps{
		Admissions: admissions,
		Orders:     client,
		Resolver:   catalog.NewResolver(client),
		Pulser:     actuator.NewLane(lines, log.Printf),
		Slots:      slots,
		Dwell:      cfg.DispenseDwell,
		Logf:       log.Printf,
	})
	dispatcher := NewDispatcher(orchestrator, cfg.QueueSize, cfg.Workers, log.Printf)

	webhookListener, err := net.Listen("tcp", webhookAddr)
	if err != nil {
		_ = lines.Close()
		if ledger != nil {
			_ = ledger.Close()
		}
		return nil, fmt.Errorf("listen on webhook addr %s: %w", webhookAddr, err)
	}
	httpServer := &http.Server{
		Handler:           transporthttp.Routes(dispatcher, log.Default()),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	healthListener, err := net.Listen("tcp", healthAddr)
	if err != nil {
		_ = webhookListener.Close()
		_ = lines.Close()
		if ledger != nil {
			_ = ledger.Close()
		}
		return nil, fmt.Errorf("listen on health addr %s: %w", healthAddr, err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("dispenser.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		webhookListener: webhookListener,
		httpServer:      httpServer,
		healthListener:  healthListener,
		grpcServer:      grpcServer,
		health:          healthServer,
		dispatcher:      dispatcher,
		lines:           lines,
		ledger:          ledger,
	}, nil
}

// WebhookAddr returns the webhook listener address.
func (s *Server) WebhookAddr() string {
	if s == nil || s.webhookListener == nil {
		return ""
	}
	return s.webhookListener.Addr().String()
}

// HealthAddr returns the health listener address.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Run creates and serves a dispenser server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the dispenser and blocks until it stops or the context ends.
// All relays are inactive by the time Serve returns, whatever the exit path.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	defer s.Close()

	s.dispatcher.Start(workerCtx)

	log.Printf("dispenser webhook listening at %v", s.webhookListener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.webhookListener)
	}()

	log.Printf("dispenser health listening at %v", s.healthListener.Addr())
	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- s.grpcServer.Serve(s.healthListener)
	}()

	handleHTTP := func(err error) error {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve webhook: %w", err)
	}
	handleGRPC := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve health: %w", err)
	}
	shutdownHTTP := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("shutdown webhook server: %v", err)
		}
	}
	shutdownGRPC := func() {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	drainWorkers := func() {
		stopWorkers()
		s.dispatcher.Wait()
	}

	select {
	case <-ctx.Done():
		shutdownHTTP()
		shutdownGRPC()
		drainWorkers()
		if err := handleHTTP(<-httpErr); err != nil {
			return err
		}
		return handleGRPC(<-grpcErr)
	case err := <-httpErr:
		shutdownGRPC()
		drainWorkers()
		if handled := handleHTTP(err); handled != nil {
			return handled
		}
		return handleGRPC(<-grpcErr)
	case err := <-grpcErr:
		shutdownHTTP()
		drainWorkers()
		if handled := handleGRPC(err); handled != nil {
			return handled
		}
		return handleHTTP(<-httpErr)
	}
}

// Close releases the server's listeners, relay lines, and admission ledger.
// Serve calls it on exit; call it directly only when Serve never ran.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.webhookListener != nil {
		_ = s.webhookListener.Close()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if s.lines != nil {
		if err := s.lines.Close(); err != nil {
			log.Printf("close relay lines: %v", err)
		}
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			log.Printf("close admission ledger: %v", err)
		}
	}
}

// openAdmissionStore selects the admission store for the configured ledger
// path. An empty path keeps admissions in process memory, which forgets
// them on restart; a path gets a sqlite ledger that survives restarts.
func openAdmissionStore(path string) (guard.Store, io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return guard.NewMemory(), nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	store, err := guardsqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open admission ledger: %w", err)
	}
	log.Printf("admission ledger at %s", path)
	return store, store, nil
}
