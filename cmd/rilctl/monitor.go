package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/observability"
	"github.com/danmuck/rilbridge/internal/ril/codec"
	"github.com/danmuck/rilbridge/internal/ril/transport"
)

func newMonitorCommand(flags *rootFlags) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Hold the daemon connection, log unsolicited events and serve metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			return runMonitor(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", defaultMetricsAddr, "address for the /metrics endpoint; empty disables it")
	return cmd
}

func runMonitor(ctx context.Context, cfg appConfig) error {
	tr, err := transport.New(cfg.Transport, transport.WithCodecs(codec.Default()))
	if err != nil {
		return err
	}
	observability.RegisterMetrics()
	events := tr.Subscribe(transport.AllEvents)
	tbl := codec.Default()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tr.Run(gctx)
	})
	g.Go(func() error {
		for ev := range events.C {
			logs.Infof("rilctl.monitor socket=%q event=%s value=%v", tr.Name(), tbl.Event(ev.Code).Name, ev.Value)
		}
		return nil
	})
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logs.Infof("rilctl.monitor metrics listening addr=%s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
