package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/config"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/events"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/observability"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/orchestrator"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/reconcile"
)

const shutdownTimeout = 10 * time.Second

var serveFlags struct {
	grpcAddr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator with its reconciliation loop",
	Long: `Run the orchestrator until interrupted. The catalog is registered at
start-up and the reconciliation loop keeps formations balanced.

An admin HTTP server listens on metrics.address and serves /healthz, /status
and, when metrics are enabled, /metrics. With --grpc-addr the standard gRPC
health service is also exposed.

These endpoints are read-only. The server accepts no requests that build
formations or create deployments, so its loop reconciles only what this
process owns. Use form and deploy, or embed the orchestrator package, to
drive situations.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.grpcAddr, "grpc-addr", "", "Address for the gRPC health service (disabled when empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger := appConfig, appLogger

	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return cli.WrapError(cli.ExitConfigError, "failed to initialize tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := observability.ShutdownTracing(shutdownCtx, tp); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	opts := []orchestrator.Option{orchestrator.WithTracer(tp.Tracer(observability.ServiceName))}

	var metrics *observability.Metrics
	var recorder *observability.Recorder
	if cfg.Metrics.Enabled {
		if metrics, err = observability.InitMetrics(); err != nil {
			return err
		}
		defer metrics.Shutdown(context.Background())
		recorder = observability.NewRecorder(metrics.Meter(observability.ServiceName))
		opts = append(opts,
			orchestrator.WithMetrics(recorder),
			orchestrator.WithReconcileOptions(reconcile.WithTickRecorder(recorder)),
		)
	}

	o, err := newOrchestrator(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer o.Shutdown()

	if recorder != nil {
		if err := registerGauges(recorder, o); err != nil {
			return err
		}
	}

	var lis net.Listener
	if serveFlags.grpcAddr != "" {
		if lis, err = net.Listen("tcp", serveFlags.grpcAddr); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", serveFlags.grpcAddr, err)
		}
	}

	if err := o.Start(ctx); err != nil {
		if lis != nil {
			lis.Close()
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	admin := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           adminHandler(o, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("admin server listening", "address", admin.Addr)
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return admin.Shutdown(shutdownCtx)
	})

	if lis != nil {
		server, hs := newHealthServer(cfg.Deployment)
		g.Go(func() error {
			logger.Info("grpc health service listening", "address", lis.Addr().String())
			return server.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			hs.Shutdown()
			server.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		logEvents(gctx, o, logger)
		return nil
	})

	logger.Info("orchestrator running",
		"providers", len(o.Providers()),
		"scaling", cfg.Orchestrator.Scaling,
		"reconcile_interval", cfg.Orchestrator.ReconcileInterval,
	)

	err = g.Wait()
	logger.Info("orchestrator stopping")
	return err
}

// adminHandler serves liveness, the status snapshot and, if m is set, metrics.
func adminHandler(o *orchestrator.Orchestrator, m *observability.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(o.GetStatus())
	})
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	return mux
}

// newHealthServer creates a gRPC server exposing the health service. The
// overall status and the configured health service name report SERVING.
func newHealthServer(dc config.DeploymentConfig) (*grpc.Server, *health.Server) {
	server := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	if dc.HealthService != "" {
		hs.SetServingStatus(dc.HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	grpc_health_v1.RegisterHealthServer(server, hs)
	return server, hs
}

func registerGauges(r *observability.Recorder, o *orchestrator.Orchestrator) error {
	gauges := []struct {
		name, desc string
		fn         func(orchestrator.Status) int
	}{
		{"scorch.providers", "Registered providers", func(s orchestrator.Status) int { return s.Providers }},
		{"scorch.formations", "Live formations", func(s orchestrator.Status) int { return s.Formations }},
		{"scorch.instances.running", "Running deployment instances", func(s orchestrator.Status) int { return s.RunningInstances }},
	}
	for _, g := range gauges {
		fn := g.fn
		if err := r.RegisterGauge(g.name, g.desc, func() float64 { return float64(fn(o.GetStatus())) }); err != nil {
			return err
		}
	}
	return nil
}

// logEvents writes every orchestrator event to the log until ctx is done.
func logEvents(ctx context.Context, o *orchestrator.Orchestrator, logger *slog.Logger) {
	ch, unsubscribe := o.Events(ctx, events.Filter{}, 64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			attrs := []any{"type", e.Type.String()}
			if e.FormationID != "" {
				attrs = append(attrs, "formation_id", e.FormationID)
			}
			if e.InstanceID != "" {
				attrs = append(attrs, "instance_id", e.InstanceID)
			}
			if e.ProviderID != "" {
				attrs = append(attrs, "provider_id", e.ProviderID)
			}
			logger.Info("event", attrs...)
		}
	}
}
