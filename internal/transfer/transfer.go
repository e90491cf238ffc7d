package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ligustah/batchdl/internal/netx"
)

// Record is the result of a completed transfer.
type Record struct {
	ElapsedS     float64
	BytesWritten int64
	UsedRange    bool
	Retried      bool
}

// Transfer completes one url-to-dst transfer, resuming via Range GET when
// the server supports it and existing bytes are present at dst.
func Transfer(ctx context.Context, client *netx.Client, url, dst string) (Record, error) {
	info, err := client.Head(ctx, url)
	if err != nil {
		info = &netx.FileInfo{AcceptRanges: false, ContentLength: -1}
	}

	existed := statSize(dst)
	var elapsed time.Duration

	if !info.AcceptRanges {
		result, err := client.GetWhole(ctx, url)
		if err != nil {
			return Record{}, fmt.Errorf("transfer: get whole: %w", err)
		}
		defer result.Body.Close()

		n, err := writeWhole(dst, result.Body)
		if err != nil {
			return Record{}, fmt.Errorf("transfer: write: %w", err)
		}

		return Record{
			ElapsedS:     result.Elapsed.Seconds(),
			BytesWritten: n,
			UsedRange:    false,
			Retried:      existed > 0,
		}, nil
	}

	offset := existed
	if info.ContentLength >= 0 && existed > info.ContentLength {
		os.Remove(dst)
		offset = 0
	}

	var written int64
	for {
		result, err := client.GetRange(ctx, url, offset, -1)
		if err != nil {
			return Record{}, fmt.Errorf("transfer: get range: %w", err)
		}
		elapsed += result.Elapsed

		if result.Status == 200 {
			// Server ignored Range: the body is the whole object, not a
			// continuation. Detect before appending and overwrite from
			// scratch instead of corrupting dst.
			n, err := writeWhole(dst, result.Body)
			result.Body.Close()
			if err != nil {
				return Record{}, fmt.Errorf("transfer: write: %w", err)
			}
			written = n
			break
		}

		n, err := appendBody(dst, result.Body)
		result.Body.Close()
		if err != nil {
			return Record{}, fmt.Errorf("transfer: append: %w", err)
		}
		offset += n
		written += n

		if n == 0 {
			break
		}
		if info.ContentLength >= 0 && offset >= info.ContentLength {
			break
		}
	}

	return Record{
		ElapsedS:     elapsed.Seconds(),
		BytesWritten: written,
		UsedRange:    true,
		Retried:      existed > 0,
	}, nil
}

func statSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// writeWhole overwrites dst atomically: write to a sibling temp file, then
// rename over dst, so a failed write never leaves a truncated file behind.
func writeWhole(dst string, body io.Reader) (int64, error) {
	tmp := dst + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}

	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return 0, copyErr
	}
	if closeErr != nil {
		os.Remove(tmp)
		return 0, closeErr
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

func appendBody(dst string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, body)
	if err != nil {
		return n, err
	}
	return n, nil
}
