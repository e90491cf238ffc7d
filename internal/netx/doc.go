// Package netx provides the HTTP transport primitives the core batch
// downloader is built against: HEAD, whole-file GET, and Range GET with
// an open-ended or bounded range. It mirrors the retry-with-backoff shape
// of a plain net/http client, with an optional token-bucket rate cap.
//
// # Usage
//
//	c := netx.NewClient(netx.DefaultOptions())
//	info, err := c.Head(ctx, url)
//	resp, err := c.GetRange(ctx, url, offset, -1) // open-ended
//	defer resp.Body.Close()
package netx
