package report

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/blob"

	"github.com/ligustah/batchdl/internal/orchestrator"
)

// RunRecord is the JSON-serializable record of one batch run. Exact field
// names are part of the contract consumed by external CSV tooling.
type RunRecord struct {
	Ts              int64                         `json:"ts"`
	BaseURL         string                        `json:"baseUrl"`
	Count           int                           `json:"count"`
	Mode            string                        `json:"mode"`
	WallTime        float64                       `json:"wallTime"`
	PausedMs        int64                         `json:"pausedMs"`
	TotalTime       float64                       `json:"totalTime"`
	TotalBytes      int64                         `json:"totalBytes"`
	PerFile         []orchestrator.PerFile        `json:"perFile"`
	WeakDetectIndex int                           `json:"weak_detect_index"`
	SwitchTriggerTs int64                         `json:"switch_trigger_ts"`
	Scheduler       orchestrator.SchedulerCounts  `json:"scheduler"`
	Probes          struct {
		Count  int64 `json:"count"`
		CostMs int64 `json:"costMs"`
	} `json:"probes"`
}

// FromResult assembles a RunRecord from one RunBatch call's inputs and
// output.
func FromResult(baseURL string, count int, mode string, ts int64, result orchestrator.Result) RunRecord {
	rec := RunRecord{
		Ts:              ts,
		BaseURL:         baseURL,
		Count:           count,
		Mode:            mode,
		WallTime:        result.WallTimeS,
		PausedMs:        result.PausedMs,
		TotalTime:       result.TotalTimeS,
		TotalBytes:      result.TotalBytes,
		PerFile:         result.PerFile,
		WeakDetectIndex: result.WeakDetectIndex,
		SwitchTriggerTs: result.SwitchTriggerTs,
		Scheduler:       result.Scheduler,
	}
	rec.Probes.Count = result.Probes.Count
	rec.Probes.CostMs = result.Probes.CostMs
	return rec
}

// WriteJSON writes rec as an indented JSON object under key in bucket.
func WriteJSON(ctx context.Context, bucket *blob.Bucket, key string, rec RunRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal run record: %w", err)
	}
	if err := bucket.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("report: write run record: %w", err)
	}
	return nil
}
