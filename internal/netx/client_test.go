package netx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Length", "1024")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Accept-Ranges", "bytes")
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	info, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if info.ContentLength != 1024 {
		t.Errorf("expected length 1024, got %d", info.ContentLength)
	}
	if info.ETag != `"abc123"` {
		t.Errorf("expected ETag, got %s", info.ETag)
	}
	if !info.AcceptRanges {
		t.Error("expected AcceptRanges true")
	}
}

func TestHeadNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	info, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if info.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", info.Status)
	}
}

func rangeServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Write(data)
			return
		}

		rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end := int64(len(data)) - 1
		if parts[1] != "" {
			end, _ = strconv.ParseInt(parts[1], 10, 64)
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}

		w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.Itoa(len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(int(end-start+1)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
}

func TestGetRange(t *testing.T) {
	data := []byte("Hello, World! This is test data for range requests.")
	server := rangeServer(t, data)
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.GetRange(context.Background(), server.URL, 7, 11)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "World" {
		t.Errorf("expected 'World', got %q", body)
	}
	if resp.Status != http.StatusPartialContent {
		t.Errorf("expected 206, got %d", resp.Status)
	}
}

func TestGetRangeOpenEnded(t *testing.T) {
	data := []byte("0123456789")
	server := rangeServer(t, data)
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.GetRange(context.Background(), server.URL, 5, -1)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "56789" {
		t.Errorf("expected '56789', got %q", body)
	}
}

func TestProbeIsOneByte(t *testing.T) {
	data := []byte("0123456789")
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Range", "bytes 0-0/10")
		w.Header().Set("Content-Length", "1")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[0:1])
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	defer resp.Body.Close()

	if gotRange != "bytes=0-0" {
		t.Errorf("expected Range 'bytes=0-0', got %q", gotRange)
	}
}

func TestRateLimitPacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.RateLimit = 20
	opts.RateBurst = 1
	client := NewClient(opts)

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := client.GetWhole(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("GetWhole: %v", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	// Burst 1 at 20 req/s: the second and third requests each wait
	// ~50ms for a token, so the loop cannot finish in under ~100ms.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 rate-capped requests finished in %v, want >= 90ms", elapsed)
	}
}

func TestGetWholeOverwriteStyle(t *testing.T) {
	data := []byte("whole file contents")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.GetWhole(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWhole: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(data) {
		t.Errorf("expected %q, got %q", data, body)
	}
}
