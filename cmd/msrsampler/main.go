package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/softdevteam/msrsampler/internal/buildinfo/cobrabuildinfo"
	"github.com/softdevteam/msrsampler/internal/sampler"
	"github.com/softdevteam/msrsampler/pkg/freqctr"
	"github.com/softdevteam/msrsampler/pkg/linux/cpuid"
	"github.com/softdevteam/msrsampler/pkg/linux/cpuinfo"
	"github.com/softdevteam/msrsampler/pkg/linux/cpulist"
	"github.com/softdevteam/msrsampler/pkg/linux/msr/msrtest"
	"github.com/softdevteam/msrsampler/pkg/linux/oncore"
	"github.com/softdevteam/msrsampler/pkg/maxprocs"
	"github.com/softdevteam/msrsampler/pkg/xlog"
	"github.com/softdevteam/msrsampler/pkg/xlog/logmetrics"
)

// Ticks the simulated machine advances every simulationStep.
const (
	simulationStep  = 10 * time.Millisecond
	simulationTicks = 1000
	simulationWidth = 48
)

type options struct {
	configPath string
	logLevel   string
	conf       sampler.Config
}

func newOptions() *options {
	return &options{conf: sampler.DefaultConfig()}
}

// newRootCmd binds the flags to opts. Every command gets its own options.
func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "msrsampler",
		Short:         "Sample per-core APERF/MPERF and unhalted core cycles",
		Long:          "Configures IA32_PERF_FIXED_CTR1, resets the frequency counters and keeps sampling them on every core",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to sampler config")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "info", "log level (must be one of `debug`, `info`, `warn`, `error`)")
	flags.IntVarP(&opts.conf.Cores, "cores", "n", 0, "number of cores to sample (default - all online cores)")
	flags.DurationVarP(&opts.conf.Interval, "interval", "i", opts.conf.Interval, "pause between sampling rounds")
	flags.IntVar(&opts.conf.Iterations, "iterations", 0, "number of rounds to take (default - until interrupted)")
	flags.BoolVar(&opts.conf.StrictMonotonic, "strict", opts.conf.StrictMonotonic, "fail when a counter goes backwards")
	flags.BoolVar(&opts.conf.Simulate, "simulate", false, "sample a simulated machine instead of /dev/cpu/*/msr")
	flags.StringVar(&opts.conf.Metrics.Addr, "metrics-addr", "", "address to serve Prometheus metrics on")

	if err := cmd.MarkFlagFilename("config", "yaml", "yml"); err != nil {
		panic(err)
	}

	cobrabuildinfo.Init(cmd)

	return cmd
}

func main() {
	if err := newRootCmd(newOptions()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies the config file and then the flags set explicitly.
func loadConfig(cmd *cobra.Command, opts *options) (sampler.Config, error) {
	conf := sampler.DefaultConfig()
	if opts.configPath != "" {
		err := sampler.LoadConfig(opts.configPath, &conf)
		if err != nil {
			return conf, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("cores") {
		conf.Cores = opts.conf.Cores
	}
	if flags.Changed("interval") {
		conf.Interval = opts.conf.Interval
	}
	if flags.Changed("iterations") {
		conf.Iterations = opts.conf.Iterations
	}
	if flags.Changed("strict") {
		conf.StrictMonotonic = opts.conf.StrictMonotonic
	}
	if flags.Changed("simulate") {
		conf.Simulate = opts.conf.Simulate
	}
	if flags.Changed("metrics-addr") {
		conf.Metrics.Addr = opts.conf.Metrics.Addr
	}

	return conf, conf.Validate()
}

func run(cmd *cobra.Command, opts *options) error {
	level, err := zapcore.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	l, err := xlog.NewLevel(level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = l.Zap().Sync() }()

	undo := maxprocs.Adjust(l.Zap())
	defer undo()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	l, err = logmetrics.NewMeteredLogger(l, registry)
	if err != nil {
		return err
	}

	conf, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Cores == 0 {
		conf.Cores, err = cpulist.CountContiguousOnline()
		if err != nil {
			return fmt.Errorf("failed to list online CPUs: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	var (
		poolOpts   = oncore.DefaultOptions()
		capability = freqctr.Capability(cpuid.GetPerfCounterVersion)
		width      = cpuid.FixedCounterWidth()
	)
	if conf.Simulate {
		machine := msrtest.NewMachine(conf.Cores, msrtest.WithCounterWidth(simulationWidth, ^uint64(0)))
		poolOpts = oncore.Options{Open: machine.Open}
		capability = func() uint8 { return 4 }
		width = simulationWidth
		g.Go(func() error {
			return simulate(ctx, machine)
		})
	} else {
		cpu, err := cpuinfo.Describe()
		if err != nil {
			l.Warn(ctx, "Failed to describe CPU", zap.Error(err))
		} else {
			l.Info(ctx, "Detected CPU", zap.String("vendor", cpu.Vendor), zap.String("model", cpu.Model))
			if !cpu.HasArchPerfMon() {
				l.Warn(ctx, "CPU vendor is not known to support the fixed-function counters")
			}
		}
	}
	if conf.CounterWidth != nil {
		width = *conf.CounterWidth
	}

	mask, err := freqctr.NewCounterMask(width)
	if err != nil {
		return err
	}

	pool, err := oncore.NewPool(ctx, l, conf.Cores, poolOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			l.Error(ctx, "Failed to close per-core workers", zap.Error(err))
		}
	}()

	var exporter *sampler.Exporter
	if conf.Metrics.Addr != "" {
		exporter, err = sampler.NewExporter(registry)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return serveMetrics(ctx, l, conf.Metrics.Addr, registry)
		})
	}

	s, err := sampler.New(l, freqctr.NewManager(l, pool, capability), mask, conf, cmd.OutOrStdout(), exporter)
	if err != nil {
		return err
	}

	g.Go(func() error {
		defer stop()
		err := s.Setup(ctx)
		if err != nil {
			return err
		}
		return s.Run(ctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func simulate(ctx context.Context, machine *msrtest.Machine) error {
	tick := time.NewTicker(simulationStep)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			machine.Busy(simulationTicks)
		}
	}
}

func serveMetrics(ctx context.Context, l xlog.Logger, addr string, r *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	l.Info(ctx, "Serving metrics", zap.String("addr", addr))
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
