package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
	"github.com/oshokin/code-winstaller/internal/release"
	"github.com/oshokin/code-winstaller/internal/transport"
)

var errDiskFull = errors.New("disk full")

// memoryDestination collects the payload in memory and records Sync calls.
type memoryDestination struct {
	bytes.Buffer

	synced   bool
	failWith error
}

func (m *memoryDestination) Write(p []byte) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}

	return m.Buffer.Write(p)
}

func (m *memoryDestination) Sync() error {
	m.synced = true

	return nil
}

func testPayload(size int) []byte {
	r := rand.New(rand.NewSource(int64(size))) //nolint:gosec // Deterministic test data.
	payload := make([]byte, size)

	for i := range payload {
		payload[i] = byte(r.Intn(256))
	}

	return payload
}

func testOptions() Options {
	return Options{
		HeaderTimeout: time.Second,
		ReadTimeout:   time.Second,
		ChunkSize:     DefaultChunkSize,
		Watchdog:      Watchdog{Interval: time.Second, MinBytes: 200},
	}
}

func download(t *testing.T, handler http.Handler, opts Options, dst Destination) (*Result, error) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	desc := &release.Descriptor{URL: ts.URL + "/setup.exe", Name: "test", SHA256Hash: "00"}

	return New(transport.NewClient("cli/test"), opts).Download(context.Background(), desc, dst)
}

// chunkedHandler serves payload with a Content-Length, flushing after each piece of the given sizes.
func chunkedHandler(payload []byte, sizes []int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))

		flusher, _ := w.(http.Flusher)
		rest := payload

		for i := 0; len(rest) > 0; i++ {
			n := min(sizes[i%len(sizes)], len(rest))
			_, _ = w.Write(rest[:n])
			rest = rest[n:]

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// TestDownload_DigestMatchesPayload checks that the digest is independent of chunk boundaries.
func TestDownload_DigestMatchesPayload(t *testing.T) {
	t.Parallel()

	payload := testPayload(200_003)
	want := sha256.Sum256(payload)

	for name, sizes := range map[string][]int{
		"whole":     {len(payload)},
		"32k":       {DefaultChunkSize},
		"irregular": {1, 7, 4096, 33_000, 13},
	} {
		name, sizes := name, sizes

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dst := new(memoryDestination)

			result, err := download(t, chunkedHandler(payload, sizes), testOptions(), dst)
			require.NoError(t, err)
			require.Equal(t, uint64(len(payload)), result.BytesRead)
			require.Equal(t, want[:], result.Digest)
			require.Equal(t, payload, dst.Bytes())
			require.True(t, dst.synced)
		})
	}
}

// TestDownload_EmptyPayload succeeds with the digest of no bytes.
func TestDownload_EmptyPayload(t *testing.T) {
	t.Parallel()

	want := sha256.Sum256(nil)
	dst := new(memoryDestination)

	result, err := download(t, chunkedHandler(nil, []int{1}), testOptions(), dst)
	require.NoError(t, err)
	require.Zero(t, result.BytesRead)
	require.Equal(t, want[:], result.Digest)
	require.True(t, dst.synced)
}

// TestDownload_BadStatus reports a network error for non-success responses.
func TestDownload_BadStatus(t *testing.T) {
	t.Parallel()

	_, err := download(t, http.NotFoundHandler(), testOptions(), new(memoryDestination))
	require.ErrorIs(t, err, installer.ErrNetwork)
}

// TestDownload_MissingContentLength rejects responses that do not declare their size.
func TestDownload_MissingContentLength(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush() //nolint:forcetypeassert // httptest writers flush.
		_, _ = w.Write([]byte("more"))
	})

	dst := new(memoryDestination)

	_, err := download(t, handler, testOptions(), dst)
	require.ErrorIs(t, err, installer.ErrNetwork)
	require.ErrorIs(t, err, errNoContentLength)
	require.Zero(t, dst.Len())
}

// TestDownload_ConnectionReset fails when the server closes the stream early without a stall.
func TestDownload_ConnectionReset(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack() //nolint:forcetypeassert // httptest supports hijacking.
		if err != nil {
			return
		}

		defer func() {
			_ = conn.Close()
		}()

		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 1000\r\n\r\n")
		_, _ = buf.Write(testPayload(500))
		_ = buf.Flush()
	})

	opts := testOptions()
	opts.Watchdog.Interval = time.Hour

	dst := new(memoryDestination)

	_, err := download(t, handler, opts, dst)
	require.ErrorIs(t, err, installer.ErrConnectionReset)
	require.NotErrorIs(t, err, installer.ErrStalledTransfer)
	require.False(t, dst.synced)
}

// TestDownload_Stalled fails with a stall when the server trickles below the minimum rate.
func TestDownload_Stalled(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")

		flusher, _ := w.(http.Flusher)
		ticker := time.NewTicker(10 * time.Millisecond)

		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := w.Write([]byte("0123456789")); err != nil {
					return
				}

				flusher.Flush()
			}
		}
	})

	opts := testOptions()
	opts.Watchdog = Watchdog{Interval: 100 * time.Millisecond, MinBytes: 200}

	dst := new(memoryDestination)
	start := time.Now()

	_, err := download(t, handler, opts, dst)
	require.ErrorIs(t, err, installer.ErrStalledTransfer)
	require.Less(t, time.Since(start), 2*time.Second)
	require.False(t, dst.synced)
}

// TestDownload_HeaderTimeout fails when response headers take too long.
func TestDownload_HeaderTimeout(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	opts := testOptions()
	opts.HeaderTimeout = 50 * time.Millisecond

	_, err := download(t, handler, opts, new(memoryDestination))
	require.ErrorIs(t, err, installer.ErrNetwork)
}

// TestDownload_ReadTimeout fails with a network error when a single read blocks too long.
func TestDownload_ReadTimeout(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("hello"))
		w.(http.Flusher).Flush() //nolint:forcetypeassert // httptest writers flush.

		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	opts := testOptions()
	opts.ReadTimeout = 50 * time.Millisecond
	opts.Watchdog.Interval = time.Hour

	_, err := download(t, handler, opts, new(memoryDestination))
	require.ErrorIs(t, err, installer.ErrNetwork)
	require.ErrorContains(t, err, "no data within")
}

// TestDownload_WriteFailure surfaces destination errors as write errors.
func TestDownload_WriteFailure(t *testing.T) {
	t.Parallel()

	payload := testPayload(1024)
	dst := &memoryDestination{failWith: errDiskFull}

	_, err := download(t, chunkedHandler(payload, []int{len(payload)}), testOptions(), dst)
	require.ErrorIs(t, err, installer.ErrWrite)
	require.ErrorIs(t, err, errDiskFull)
	require.False(t, dst.synced)
}
