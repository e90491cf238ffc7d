// Package transfer implements ResumableTransfer: completing one URL to
// local-file transfer, using Range continuation when the server supports
// it, and falling back to a whole-file overwrite otherwise. A transfer is
// stateless between calls — resume is driven entirely by what is already
// on disk at the destination path.
package transfer
