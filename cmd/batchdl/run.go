package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gocloud.dev/blob/fileblob"

	"github.com/ligustah/batchdl/internal/config"
	"github.com/ligustah/batchdl/internal/logging"
	"github.com/ligustah/batchdl/internal/netx"
	"github.com/ligustah/batchdl/internal/orchestrator"
	"github.com/ligustah/batchdl/internal/report"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	baseURL := fs.String("base-url", "", "Base URL for img_NNN.jpg objects (required)")
	count := fs.Int("count", 0, "Number of URLs to fetch (required)")
	mode := fs.String("mode", "WIFI_ONLY", "WIFI_ONLY or AUTO_SWITCH")
	destDir := fs.String("dest-dir", ".", "Local destination directory")
	configFile := fs.String("config", "", "Optional YAML config file")
	logLevel := fs.String("log-level", "info", "debug, info, warn, or error")
	rateLimit := fs.Float64("rate-limit", 0, "If > 0, cap outbound requests per second")
	rateBurst := fs.Int("rate-burst", 0, "Token-bucket burst size when -rate-limit is set")
	metricsAddr := fs.String("metrics-addr", "", "If set, serve /metrics on this address")
	reportPath := fs.String("report-path", "", "If set, write the JSON run record here")
	csvDir := fs.String("csv-dir", "", "If set, append rows to runs.csv/perfile.csv here")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: batchdl run [options]

Execute one batch of URL-to-file transfers, optionally migrating from
Wi-Fi to cellular when the link degrades (-mode AUTO_SWITCH).

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg := config.Default()
	if *configFile != "" {
		fileCfg, err := config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(config.Config{
		BaseURL:     *baseURL,
		Count:       *count,
		Mode:        *mode,
		DestDir:     *destDir,
		RateLimit:   *rateLimit,
		RateBurst:   *rateBurst,
		MetricsAddr: *metricsAddr,
		ReportPath:  *reportPath,
		CSVDir:      *csvDir,
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	logger := logging.New("batchdl", *logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("received interrupt, shutting down")
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer server.Close()
	}

	if err := os.MkdirAll(cfg.DestDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: creating dest-dir: %v\n", err)
		return ExitGeneralError
	}

	result, err := runBatchOnce(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	rec := report.FromResult(cfg.BaseURL, cfg.Count, cfg.Mode, time.Now().Unix(), result)

	if cfg.ReportPath != "" {
		if err := writeRunRecord(ctx, cfg.ReportPath, rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
	}
	if cfg.CSVDir != "" {
		if err := report.AppendRunsCSV(filepath.Join(cfg.CSVDir, "runs.csv"), rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
		if err := report.AppendPerFileCSV(filepath.Join(cfg.CSVDir, "perfile.csv"), rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
	}

	logger.Info("batch complete",
		"wallTime", result.WallTimeS,
		"totalTime", result.TotalTimeS,
		"totalBytes", result.TotalBytes,
		"weakDetectIndex", result.WeakDetectIndex,
	)
	return ExitSuccess
}

func runBatchOnce(ctx context.Context, cfg config.Config, logger *slog.Logger) (orchestrator.Result, error) {
	client := netx.NewClient(netx.Options{
		MaxIdleConnsPerHost: netx.DefaultOptions().MaxIdleConnsPerHost,
		Timeout:             netx.DefaultOptions().Timeout,
		ProbeTimeout:        netx.DefaultOptions().ProbeTimeout,
		RetryAttempts:       cfg.Retry.Attempts,
		RetryBackoff:        cfg.Retry.Backoff,
		RetryMaxBackoff:     cfg.Retry.MaxBackoff,
		RateLimit:           cfg.RateLimit,
		RateBurst:           cfg.RateBurst,
	})

	orch := orchestrator.New(orchestrator.Options{
		BaseURL:     cfg.BaseURL,
		Count:       cfg.Count,
		Mode:        orchestrator.Mode(cfg.Mode),
		DestDir:     cfg.DestDir,
		ProbeEveryN: cfg.ProbeEveryN,
		ConcBefore:  cfg.ConcBefore,
		ConcWeak:    cfg.ConcWeak,
		ConcAfter:   cfg.ConcAfter,
		Client:      client,
		Logger:      logger,
	})

	return orch.RunBatch(ctx)
}

func writeRunRecord(ctx context.Context, path string, rec report.RunRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return fmt.Errorf("open report bucket: %w", err)
	}
	defer bucket.Close()

	return report.WriteJSON(ctx, bucket, filepath.Base(path), rec)
}
