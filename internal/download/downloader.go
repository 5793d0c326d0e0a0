package download

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"time"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
	"github.com/oshokin/code-winstaller/internal/logger"
	"github.com/oshokin/code-winstaller/internal/release"
	"github.com/oshokin/code-winstaller/internal/transport"
)

const (
	// DefaultChunkSize is the size of a single body read.
	DefaultChunkSize = 32 << 10
	// DefaultHeaderTimeout bounds the wait for response headers.
	DefaultHeaderTimeout = 60 * time.Second
	// DefaultReadTimeout bounds each body read.
	DefaultReadTimeout = 5 * time.Second
)

var (
	// errReadTimeout marks a body read that outlived Options.ReadTimeout.
	errReadTimeout = errors.New("read timed out")
	// errNoContentLength is returned when the server does not declare the payload size.
	errNoContentLength = errors.New("response has no Content-Length")
)

// Destination receives the payload. *os.File satisfies it.
type Destination interface {
	io.Writer
	Sync() error
}

// Options configures a Downloader.
type Options struct {
	// HeaderTimeout bounds the wait for the response headers.
	HeaderTimeout time.Duration
	// ReadTimeout bounds each body read.
	ReadTimeout time.Duration
	// ChunkSize is the buffer size of a single read.
	ChunkSize int
	// Watchdog supervises the transfer.
	Watchdog Watchdog
}

// Result describes a finished transfer.
type Result struct {
	// BytesRead is the number of payload bytes written to the destination.
	BytesRead uint64
	// Digest is the SHA-256 of everything written, in order.
	Digest []byte
}

// Downloader streams a release payload to a Destination.
type Downloader struct {
	client *http.Client
	opts   Options
}

// New returns a Downloader issuing requests through client.
func New(client *http.Client, opts Options) *Downloader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	return &Downloader{
		client: client,
		opts:   opts,
	}
}

// Download fetches desc.URL into dst and returns the digest of the written bytes.
// The digest is not compared here; the caller must verify it before using dst.
//
// Failures wrap one of installer.ErrNetwork, installer.ErrStalledTransfer,
// installer.ErrConnectionReset or installer.ErrWrite.
func (d *Downloader) Download(ctx context.Context, desc *release.Descriptor, dst Destination) (*Result, error) {
	logger.Infof(ctx, "Downloading installer from %s", desc.URL)

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := d.open(reqCtx, cancel, desc.URL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength < 0 {
		return nil, fmt.Errorf("%s: %w: %w", desc.URL, installer.ErrNetwork, errNoContentLength)
	}

	progress := NewProgress(uint64(resp.ContentLength)) //nolint:gosec // Checked non-negative above.

	// Stops the watchdog on every exit path.
	defer progress.Abort()

	logger.InfoKV(ctx, "Download started", "total_bytes", progress.TotalBytes())

	go d.opts.Watchdog.Watch(ctx, progress)

	hasher := sha256.New()

	if err = d.stream(ctx, cancel, resp.Body, dst, hasher, progress); err != nil {
		return nil, err
	}

	if err = dst.Sync(); err != nil {
		return nil, fmt.Errorf("flush installer: %w: %w", installer.ErrWrite, err)
	}

	return &Result{
		BytesRead: progress.BytesRead(),
		Digest:    hasher.Sum(nil),
	}, nil
}

// open sends the request and waits at most HeaderTimeout for the response headers.
func (d *Downloader) open(ctx context.Context, cancel context.CancelFunc, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w: %w", installer.ErrNetwork, err)
	}

	deadline := transport.Arm(d.headerTimeout(), cancel)

	resp, err := d.client.Do(req)

	expired := deadline.Disarm()

	switch {
	case err != nil && expired:
		return nil, fmt.Errorf("no response headers from %s within %s: %w", url, d.headerTimeout(), installer.ErrNetwork)
	case err != nil:
		return nil, fmt.Errorf("request installer: %w: %w", installer.ErrNetwork, err)
	case expired:
		_ = resp.Body.Close()

		return nil, fmt.Errorf("no response headers from %s within %s: %w", url, d.headerTimeout(), installer.ErrNetwork)
	}

	if err = transport.CheckStatus(resp); err != nil {
		_ = resp.Body.Close()

		return nil, err
	}

	return resp, nil
}

// stream copies body to dst and hasher one chunk at a time, never overlapping
// a write with the next read.
//
//nolint:cyclop // The loop mirrors the transfer termination rules one by one.
func (d *Downloader) stream(
	ctx context.Context,
	cancel context.CancelFunc,
	body io.Reader,
	dst io.Writer,
	hasher hash.Hash,
	progress *Progress,
) error {
	buf := make([]byte, d.opts.ChunkSize)

	for {
		n, readErr := d.read(cancel, body, buf)

		if n > 0 {
			chunk := buf[:n]

			progress.Add(uint64(n))

			if _, err := dst.Write(chunk); err != nil {
				return fmt.Errorf("write installer: %w: %w", installer.ErrWrite, err)
			}

			// hash.Hash.Write never returns an error.
			_, _ = hasher.Write(chunk)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}

			return d.readFailure(ctx, readErr, progress)
		}

		if n == 0 || progress.Complete() || progress.Aborted() {
			break
		}
	}

	if progress.Complete() {
		return nil
	}

	if progress.Stalled() {
		return d.stallError(progress)
	}

	return fmt.Errorf("stream ended after %d of %d bytes: %w",
		progress.BytesRead(), progress.TotalBytes(), installer.ErrConnectionReset)
}

// read performs one body read bounded by ReadTimeout.
func (d *Downloader) read(cancel context.CancelFunc, body io.Reader, buf []byte) (int, error) {
	deadline := transport.Arm(d.readTimeout(), cancel)

	n, err := body.Read(buf)

	if deadline.Disarm() {
		return n, errReadTimeout
	}

	return n, err
}

// readFailure classifies a failed body read.
func (d *Downloader) readFailure(ctx context.Context, readErr error, progress *Progress) error {
	switch {
	case progress.Stalled():
		return d.stallError(progress)
	case errors.Is(readErr, errReadTimeout):
		return fmt.Errorf("no data within %s after %d of %d bytes: %w",
			d.readTimeout(), progress.BytesRead(), progress.TotalBytes(), installer.ErrNetwork)
	case ctx.Err() != nil:
		return fmt.Errorf("download interrupted: %w: %w", installer.ErrNetwork, ctx.Err())
	default:
		return fmt.Errorf("stream ended after %d of %d bytes: %w: %w",
			progress.BytesRead(), progress.TotalBytes(), installer.ErrConnectionReset, readErr)
	}
}

func (d *Downloader) stallError(progress *Progress) error {
	return fmt.Errorf("less than %d bytes retrieved in %s, stopped after %d of %d bytes: %w",
		d.opts.Watchdog.MinBytes, d.opts.Watchdog.Interval,
		progress.BytesRead(), progress.TotalBytes(), installer.ErrStalledTransfer)
}

func (d *Downloader) headerTimeout() time.Duration {
	if d.opts.HeaderTimeout > 0 {
		return d.opts.HeaderTimeout
	}

	return DefaultHeaderTimeout
}

func (d *Downloader) readTimeout() time.Duration {
	if d.opts.ReadTimeout > 0 {
		return d.opts.ReadTimeout
	}

	return DefaultReadTimeout
}
