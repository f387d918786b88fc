// Package commands implements CLI command handlers for daqstream.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/daqstream/internal/capture"
	"github.com/Sumatoshi-tech/daqstream/internal/catalog"
	"github.com/Sumatoshi-tech/daqstream/internal/chunk"
	"github.com/Sumatoshi-tech/daqstream/internal/config"
	"github.com/Sumatoshi-tech/daqstream/internal/control"
	"github.com/Sumatoshi-tech/daqstream/internal/device"
	"github.com/Sumatoshi-tech/daqstream/internal/observability"
)

// catalogFileName is the default SQLite index name inside the output dir.
const catalogFileName = "catalog.db"

// metricsShutdownTimeout bounds the metrics listener's graceful shutdown.
const metricsShutdownTimeout = 2 * time.Second

// RunCommand holds configuration and dependencies for the capture daemon.
type RunCommand struct {
	configPath string
	deviceName string
	outputDir  string
}

// NewRunCommand creates the `run` command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture daemon",
		Long: `Run starts the streaming pipeline: a producer pulling samples from the
sampling device into a ring buffer, a consumer committing chunk files, and
a control server on a local Unix socket (START, STOP, STATUS, SET_RATE).`,
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.configPath, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&rc.deviceName, "device", "", "sampling source name (overrides config)")
	cmd.Flags().StringVar(&rc.outputDir, "output-dir", "", "chunk output directory (overrides config)")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	logger := newLogger(cmd)

	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return err
	}

	if rc.deviceName != "" {
		cfg.Capture.Device = rc.deviceName
	}

	if rc.outputDir != "" {
		cfg.Capture.OutputDir = rc.outputDir
	}

	ringSize, err := cfg.RingSizeBytes()
	if err != nil {
		return err
	}

	// Everything below up to worker start is startup-fatal on error.
	err = os.MkdirAll(cfg.Capture.OutputDir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory %s: %w", cfg.Capture.OutputDir, err)
	}

	registry := device.NewRegistry()
	registry.Register(&device.Sim{})

	src, err := registry.Select(cfg.Capture.Device)
	if err != nil {
		return err
	}

	var (
		metrics        *observability.PipelineMetrics
		metricsHandler http.Handler
		meter          metric.Meter
	)

	if cfg.Metrics.Enabled {
		m, handler, promErr := observability.NewPrometheus()
		if promErr != nil {
			return promErr
		}

		meter = m
		metricsHandler = handler

		metrics, err = observability.NewPipelineMetrics(meter)
		if err != nil {
			return err
		}
	}

	var recorder capture.ChunkRecorder

	if cfg.Catalog.Enabled {
		dbPath := cfg.Catalog.File
		if dbPath == "" {
			dbPath = filepath.Join(cfg.Capture.OutputDir, catalogFileName)
		}

		cat, catErr := catalog.Open(dbPath)
		if catErr != nil {
			return catErr
		}

		defer cat.Close()

		recorder = cat
	}

	bootID := chunk.NewBootID()
	state := capture.NewState(cfg.Capture.RateHz)

	pipe := capture.NewPipeline(capture.Options{
		State:         state,
		Source:        src,
		Writer:        chunk.NewWriter(cfg.Capture.OutputDir, bootID),
		Catalog:       recorder,
		RingSize:      ringSize,
		Channel:       cfg.Capture.Channel,
		ChunkDuration: cfg.Capture.ChunkDuration,
		IdlePoll:      cfg.Capture.IdlePoll,
		ReadTimeout:   cfg.Capture.ReadTimeout,
		Logger:        logger,
		Metrics:       metrics,
	})

	if meter != nil {
		err = observability.ObserveRingOccupancy(meter, func() int64 {
			return int64(pipe.Ring().Available())
		})
		if err != nil {
			return err
		}
	}

	ctrl := control.NewServer(cfg.Control.Socket, state, pipe.Status, logger)

	err = ctrl.Listen()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("daqstream starting",
		"boot_id", fmt.Sprintf("%016x", bootID),
		"device", src.Name(),
		"channel", cfg.Capture.Channel,
		"rate_hz", cfg.Capture.RateHz,
		"chunk_duration", cfg.Capture.ChunkDuration,
		"ring", humanize.IBytes(uint64(ringSize)),
		"output_dir", cfg.Capture.OutputDir,
		"socket", cfg.Control.Socket)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		ctrl.Run(ctx)
	}()

	metricsSrv := rc.serveMetrics(cfg, metricsHandler, logger)

	pipe.Start(ctx)

	<-ctx.Done()
	logger.Info("shutdown requested, draining pipeline")

	pipe.Wait()
	wg.Wait()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	st := pipe.Status()
	logger.Info("daqstream stopped",
		"samples_committed", st.Seq,
		"samples_dropped", st.DroppedSamples)

	return nil
}

// serveMetrics starts the optional Prometheus scrape listener.
func (rc *RunCommand) serveMetrics(cfg *config.Config, handler http.Handler, logger *slog.Logger) *http.Server {
	if handler == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", "addr", cfg.Metrics.Addr)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "err", err)
		}
	}()

	return srv
}

// newLogger builds the daemon logger honoring the persistent
// --verbose/--quiet flags.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if quiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
