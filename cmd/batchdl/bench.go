package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/ligustah/batchdl/internal/config"
	"github.com/ligustah/batchdl/internal/logging"
	"github.com/ligustah/batchdl/internal/orchestrator"
)

func runBench(args []string) int {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)

	baseURL := fs.String("base-url", "", "Base URL for img_NNN.jpg objects (required)")
	count := fs.Int("count", 30, "Number of URLs per round")
	rounds := fs.Int("rounds", 1, "Number of rounds per mode")
	destDir := fs.String("dest-dir", ".", "Local destination directory")
	rateLimit := fs.Float64("rate-limit", 0, "If > 0, cap outbound requests per second")
	logLevel := fs.String("log-level", "warn", "debug, info, warn, or error")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: batchdl bench [options]

Run several rounds of WIFI_ONLY and AUTO_SWITCH and print a comparison
of wall/total time and probe overhead, the Go-native equivalent of the
original summarize.py report.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *baseURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -base-url is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	logger := logging.New("batchdl", *logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg := config.Default()
	cfg.BaseURL = *baseURL
	cfg.Count = *count
	cfg.DestDir = *destDir
	cfg.RateLimit = *rateLimit

	byMode := map[string][]orchestrator.Result{}
	for _, mode := range []string{"WIFI_ONLY", "AUTO_SWITCH"} {
		cfg.Mode = mode
		for i := 0; i < *rounds; i++ {
			result, err := runBatchOnce(ctx, cfg, logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: round %d of %s: %v\n", i+1, mode, err)
				return ExitGeneralError
			}
			byMode[mode] = append(byMode[mode], result)
		}
	}

	printComparison(byMode)
	return ExitSuccess
}

type modeStats struct {
	n           int
	wallAvg     float64
	wallMed     float64
	totalAvg    float64
	totalMed    float64
	probeMedPct float64
}

func computeStats(results []orchestrator.Result) modeStats {
	n := len(results)
	if n == 0 {
		return modeStats{}
	}

	wall := make([]float64, n)
	total := make([]float64, n)
	probeRatio := make([]float64, n)
	for i, r := range results {
		wall[i] = r.WallTimeS
		total[i] = r.TotalTimeS
		if r.WallTimeS > 0 {
			probeRatio[i] = float64(r.Probes.CostMs) / (r.WallTimeS * 1000.0) * 100.0
		}
	}

	return modeStats{
		n:           n,
		wallAvg:     mean(wall),
		wallMed:     median(wall),
		totalAvg:    mean(total),
		totalMed:    median(total),
		probeMedPct: median(probeRatio),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func percentImprove(baseline, optimized float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (baseline - optimized) / baseline * 100.0
}

func printComparison(byMode map[string][]orchestrator.Result) {
	wifi := computeStats(byMode["WIFI_ONLY"])
	auto := computeStats(byMode["AUTO_SWITCH"])

	fmt.Printf("%-12s %4s %10s %10s %10s %10s %8s\n",
		"mode", "n", "wall_avg", "wall_med", "total_avg", "total_med", "probe%")
	fmt.Printf("%-12s %4d %10.3f %10.3f %10.3f %10.3f %8.3f\n",
		"WIFI_ONLY", wifi.n, wifi.wallAvg, wifi.wallMed, wifi.totalAvg, wifi.totalMed, wifi.probeMedPct)
	fmt.Printf("%-12s %4d %10.3f %10.3f %10.3f %10.3f %8.3f\n",
		"AUTO_SWITCH", auto.n, auto.wallAvg, auto.wallMed, auto.totalAvg, auto.totalMed, auto.probeMedPct)

	if wifi.n > 0 && auto.n > 0 {
		impAvg := percentImprove(wifi.totalAvg, auto.totalAvg)
		impMed := percentImprove(wifi.totalMed, auto.totalMed)
		fmt.Printf("\nAUTO_SWITCH total time improvement: avg %.1f%%, median %.1f%%\n", impAvg, impMed)
	}
}
