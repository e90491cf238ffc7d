package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ligustah/batchdl/internal/netx"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-0/100")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte{0})
	}))
}

func TestMaybeProbeCadence(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	client := netx.NewClient(netx.DefaultOptions())
	p := New(client, 10, t.TempDir())

	var probed int
	for i := 1; i <= 30; i++ {
		if p.MaybeProbe(context.Background(), i, server.URL) {
			probed++
		}
	}
	if probed != 3 {
		t.Errorf("expected 3 probes in 30 calls at everyN=10, got %d", probed)
	}

	snap := p.Snapshot()
	if snap.Count != 3 {
		t.Errorf("expected snapshot count 3, got %d", snap.Count)
	}
}

func TestBoostShortHalvesCadence(t *testing.T) {
	server := testServer(t)
	defer server.Close()

	client := netx.NewClient(netx.DefaultOptions())
	p := New(client, 10, t.TempDir())
	p.BoostShort(time.Minute)

	var probed int
	for i := 1; i <= 10; i++ {
		if p.MaybeProbe(context.Background(), i, server.URL) {
			probed++
		}
	}
	// effective interval halves to 5 while boosted.
	if probed != 2 {
		t.Errorf("expected 2 probes in 10 calls while boosted, got %d", probed)
	}
}

func TestMaybeProbeSwallowsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := netx.NewClient(netx.Options{
		MaxIdleConnsPerHost: 1,
		Timeout:             time.Second,
		ProbeTimeout:        200 * time.Millisecond,
		RetryAttempts:       0,
		RetryBackoff:        time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	})
	p := New(client, 2, t.TempDir())

	did := p.MaybeProbe(context.Background(), 2, server.URL)
	if !did {
		t.Error("expected MaybeProbe to report an attempt even on error")
	}
	snap := p.Snapshot()
	if snap.Count != 1 {
		t.Errorf("expected count incremented on error path, got %d", snap.Count)
	}
	if snap.CostMs <= 0 {
		t.Errorf("expected costMs to account for a failed probe's elapsed time, got %d", snap.CostMs)
	}
}
