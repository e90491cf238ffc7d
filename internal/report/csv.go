package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ligustah/batchdl/internal/orchestrator"
)

var runsColumns = []string{
	"ts", "mode", "baseUrl", "count",
	"wallTime_s", "totalTime_s", "paused_s",
	"totalBytes", "wifi_bytes", "cell_bytes",
	"weak_detect_index", "switch_trigger_ts",
	"probe_count", "probe_cost_ms", "probe_ratio_pct",
	"sum_perfile_t_s", "consistency_pct",
}

var perFileColumns = []string{
	"ts", "url", "t_s", "bytes", "path", "used_range", "retried",
}

// AppendRunsCSV appends one derived summary row for rec to path,
// writing a header first if the file is new or empty.
func AppendRunsCSV(path string, rec RunRecord) error {
	wifiBytes, cellBytes := bytesSplit(rec.PerFile)
	sumT := sumPerFileTime(rec.PerFile)

	var consistencyPct float64
	if rec.TotalTime > 0 {
		consistencyPct = sumT / rec.TotalTime * 100.0
	}
	var probeRatioPct float64
	if rec.WallTime > 0 {
		probeRatioPct = float64(rec.Probes.CostMs) / (rec.WallTime * 1000.0) * 100.0
	}

	row := []string{
		strconv.FormatInt(rec.Ts, 10),
		rec.Mode,
		rec.BaseURL,
		strconv.Itoa(rec.Count),
		strconv.FormatFloat(rec.WallTime, 'f', 3, 64),
		strconv.FormatFloat(rec.TotalTime, 'f', 3, 64),
		strconv.FormatFloat(float64(rec.PausedMs)/1000.0, 'f', 3, 64),
		strconv.FormatInt(rec.TotalBytes, 10),
		strconv.FormatInt(wifiBytes, 10),
		strconv.FormatInt(cellBytes, 10),
		strconv.Itoa(rec.WeakDetectIndex),
		strconv.FormatInt(rec.SwitchTriggerTs, 10),
		strconv.FormatInt(rec.Probes.Count, 10),
		strconv.FormatFloat(float64(rec.Probes.CostMs), 'f', 1, 64),
		strconv.FormatFloat(probeRatioPct, 'f', 3, 64),
		strconv.FormatFloat(sumT, 'f', 3, 64),
		strconv.FormatFloat(consistencyPct, 'f', 2, 64),
	}

	return appendCSVRow(path, runsColumns, row)
}

// AppendPerFileCSV appends one row per transferred URL in rec to path.
func AppendPerFileCSV(path string, rec RunRecord) error {
	f, w, isNew, err := openCSVForAppend(path)
	if err != nil {
		return err
	}
	defer f.Close()
	defer w.Flush()

	if isNew {
		if err := w.Write(perFileColumns); err != nil {
			return fmt.Errorf("report: write perfile header: %w", err)
		}
	}

	for _, pf := range rec.PerFile {
		row := []string{
			strconv.FormatInt(rec.Ts, 10),
			pf.URL,
			strconv.FormatFloat(pf.T, 'f', 3, 64),
			strconv.FormatInt(pf.Bytes, 10),
			pf.Path,
			strconv.FormatBool(pf.UsedRange),
			strconv.FormatBool(pf.Retried),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: write perfile row: %w", err)
		}
	}
	return w.Error()
}

func appendCSVRow(path string, header, row []string) error {
	f, w, isNew, err := openCSVForAppend(path)
	if err != nil {
		return err
	}
	defer f.Close()
	defer w.Flush()

	if isNew {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("report: write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("report: write row: %w", err)
	}
	return w.Error()
}

func openCSVForAppend(path string) (*os.File, *csv.Writer, bool, error) {
	isNew := true
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		isNew = false
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, false, fmt.Errorf("report: open %s: %w", path, err)
	}
	return f, csv.NewWriter(f), isNew, nil
}

func bytesSplit(perFile []orchestrator.PerFile) (wifi, cell int64) {
	for _, pf := range perFile {
		if pf.Path == "cell" {
			cell += pf.Bytes
		} else {
			wifi += pf.Bytes
		}
	}
	return wifi, cell
}

func sumPerFileTime(perFile []orchestrator.PerFile) float64 {
	var sum float64
	for _, pf := range perFile {
		if pf.T >= 0 {
			sum += pf.T
		}
	}
	return sum
}
