package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netHttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	api "github.com/hsharrison/govrpn/internal/api/http"
	"github.com/hsharrison/govrpn/internal/config"
	"github.com/hsharrison/govrpn/internal/metrics"
	"github.com/hsharrison/govrpn/internal/store/sqlite"
	"github.com/hsharrison/govrpn/internal/util"
	"github.com/hsharrison/govrpn/pkg/log"
	"github.com/hsharrison/govrpn/pkg/server"
	"github.com/hsharrison/govrpn/pkg/vrpn"
)

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the VRPN server and relay device events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}

			return Serve(cfg)
		},
	}

	cmd.Flags().String("api-addr", "0.0.0.0:8120", "status api address")
	_ = viper.BindPFlag("api.addr", cmd.Flags().Lookup("api-addr"))

	cmd.Flags().Int("metrics-port", 9090, "prometheus metrics port")
	_ = viper.BindPFlag("metrics.port", cmd.Flags().Lookup("metrics-port"))

	cmd.Flags().String("store-path", "govrpn.db", "sample store path")
	_ = viper.BindPFlag("store.path", cmd.Flags().Lookup("store-path"))

	cmd.Flags().String("server-sentinel", "", "regexp matched against server stdout to detect readiness")
	_ = viper.BindPFlag("server.sentinel", cmd.Flags().Lookup("server-sentinel"))

	cmd.Flags().Duration("server-timeout", 0, "max wait for the readiness sentinel")
	_ = viper.BindPFlag("server.timeout", cmd.Flags().Lookup("server-timeout"))

	cmd.Flags().Bool("ignore-asserts", false, "ignore-asserts mode")
	_ = viper.BindPFlag("ignore-asserts", cmd.Flags().Lookup("ignore-asserts"))

	return cmd
}

func Serve(cfg *config.Config) error {
	// logger
	logLevel, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		slog.Error("failed to parse log level", "error", err)
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// metrics
	reg := prometheus.NewRegistry()
	metrics := metrics.New(reg)

	// store
	store := sqlite.New(cfg.Store, metrics)
	if err := store.Start(); err != nil {
		slog.Error("failed to start store", "error", err)
		return err
	}
	defer util.DeferAndLog(store.Stop)

	// receivers
	receivers, err := cfg.BuildReceivers()
	if err != nil {
		return err
	}

	// local server
	srv, err := server.NewLocal(receivers, cfg.Server.Options())
	if err != nil {
		return err
	}

	// relay dispatched samples into metrics and the store
	for _, r := range receivers {
		name := r.Name()
		r.Handle(vrpn.EventInput, func(report *vrpn.Report) {
			metrics.Samples.WithLabelValues(name, report.Class.String()).Inc()
			store.Append(report)
		})
	}

	// status api
	apiErrors := make(chan error, 1)
	statusApi := api.New(srv, store, metrics, cfg.API)
	go statusApi.Start(apiErrors)

	// metrics server
	mux := netHttp.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	metricsServer := &netHttp.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	go func() {
		slog.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != netHttp.ErrServerClosed {
			slog.Error("error starting metrics server", "error", err)
		}
	}()

	// start server process
	if err := srv.Start(context.Background()); err != nil {
		slog.Error("failed to start server", "error", err)
		return err
	}
	metrics.ServerStarts.Inc()
	metrics.ServerUp.Set(1)

	// halt until we get a shutdown signal or an error occurs, whichever
	// happens first
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	kill := false
	select {
	case s := <-sig:
		slog.Info("shutdown signal received, shutting down", "signal", s)
	case err := <-apiErrors:
		slog.Error("api error received, shutting down", "error", err)
		kill = true
	case err := <-srv.Errors():
		slog.Error("server error received, shutting down", "error", err)
		kill = true
	}

	// stop server process
	if _, err := srv.Stop(kill); err != nil && !errors.Is(err, server.ErrNotRunning) {
		slog.Error("failed to stop server", "error", err)
	}
	metrics.ServerUp.Set(0)

	// stop api
	if err := statusApi.Stop(); err != nil {
		slog.Warn("error stopping http server", "error", err)
	}

	// stop metrics server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping metrics server", "error", err)
	}

	return nil
}
