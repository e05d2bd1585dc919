package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"xdao.co/sigpolicy/config"
	"xdao.co/sigpolicy/internal/logging"
	"xdao.co/sigpolicy/internal/metrics"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/storage/grpcstore"
	"xdao.co/sigpolicy/storage/registry"

	_ "xdao.co/sigpolicy/storage/ipfs"
	_ "xdao.co/sigpolicy/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("sigpolicy-stored", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML or JSON config file (stores, logging, metrics, server)")
	listen := fs.String("listen", "", "listen address (overrides server.listen)")
	backend := fs.String("backend", "localfs", "store backend name when the config lists no stores")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.address)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = *metricsAddr
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	store, closeFn, err := openStore(cfg, *backend)
	if err != nil {
		logger.Error("open store failed", zap.Error(err))
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		logger.Error("metrics setup failed", zap.Error(err))
		return 1
	}

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		logger.Error("listen failed", zap.String("address", cfg.Server.Listen), zap.Error(err))
		return 1
	}

	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.Server.MaxMsgBytes),
		grpc.MaxSendMsgSize(cfg.Server.MaxMsgBytes),
	)
	grpcstore.RegisterPolicyStoreServer(srv, &grpcstore.Server{Store: store, Logger: logger, Metrics: m})

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("metrics enabled", zap.String("address", cfg.Metrics.Address), zap.String("path", cfg.Metrics.Path))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.GracefulStop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
	}()

	logger.Info("sigpolicy-stored listening", zap.String("address", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Error("serve failed", zap.Error(err))
		return 1
	}
	return 0
}

// openStore prefers the config's stores section and falls back to the
// -backend flag with its backend-specific flags.
func openStore(cfg *config.Config, backend string) (storage.Store, func() error, error) {
	if len(cfg.Stores.Backends) > 0 {
		return cfg.OpenStores(registry.UsageDaemon)
	}
	return registry.Open(backend, registry.UsageDaemon)
}
