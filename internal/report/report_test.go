package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocloud.dev/blob/memblob"

	"github.com/ligustah/batchdl/internal/orchestrator"
)

func sampleResult() orchestrator.Result {
	return orchestrator.Result{
		WallTimeS:  12.5,
		PausedMs:   2000,
		TotalTimeS: 10.5,
		TotalBytes: 3000,
		PerFile: []orchestrator.PerFile{
			{URL: "http://x/img_001.jpg", T: 1.0, Bytes: 1000, Path: "wifi", UsedRange: true},
			{URL: "http://x/img_002.jpg", T: 1.5, Bytes: 2000, Path: "cell", UsedRange: true, Retried: true},
			{URL: "http://x/img_003.jpg", T: -1, Bytes: 0, Path: "cell"},
		},
		WeakDetectIndex: 1,
		SwitchTriggerTs: 1700000000000,
		Scheduler:       orchestrator.SchedulerCounts{Before: 1, Weak: 1, After: 1},
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	rec := FromResult("http://example.test", 3, "AUTO_SWITCH", 1700000000, sampleResult())

	ctx := context.Background()
	if err := WriteJSON(ctx, bucket, "run.json", rec); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := bucket.ReadAll(ctx, "run.json")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	var got RunRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.BaseURL != rec.BaseURL || got.Count != rec.Count || len(got.PerFile) != 3 {
		t.Errorf("round-tripped record mismatch: %+v", got)
	}
	if !strings.Contains(string(data), `"weak_detect_index"`) {
		t.Error("expected exact field name weak_detect_index in JSON output")
	}
}

func TestAppendRunsCSVWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.csv")

	rec := FromResult("http://example.test", 3, "AUTO_SWITCH", 1700000000, sampleResult())
	if err := AppendRunsCSV(path, rec); err != nil {
		t.Fatalf("AppendRunsCSV: %v", err)
	}
	if err := AppendRunsCSV(path, rec); err != nil {
		t.Fatalf("AppendRunsCSV (2nd): %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 1 header + 2 data rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ts,mode,baseUrl,count") {
		t.Errorf("unexpected header: %s", lines[0])
	}
}

func TestAppendPerFileCSVWritesOneRowPerURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfile.csv")

	rec := FromResult("http://example.test", 3, "AUTO_SWITCH", 1700000000, sampleResult())
	if err := AppendPerFileCSV(path, rec); err != nil {
		t.Fatalf("AppendPerFileCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 1 header + 3 rows, got %d", len(lines))
	}
}
