package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
	"github.com/oshokin/code-winstaller/internal/logger"
	"github.com/oshokin/code-winstaller/internal/transport"
)

// maxMetadataSize caps the metadata body; real responses are a few hundred bytes.
const maxMetadataSize = 1 << 20

// errEmptyURL is returned when the resolver is built without an endpoint.
var errEmptyURL = errors.New("metadata url must be provided")

// Descriptor identifies one downloadable installer build.
type Descriptor struct {
	// URL is where the installer binary is downloaded from.
	URL string `json:"url"`
	// Name is the human-readable release name.
	Name string `json:"name"`
	// SHA256Hash is the hex-encoded SHA-256 digest of the installer.
	SHA256Hash string `json:"sha256hash"`
}

// Validate reports which required fields are missing.
func (d *Descriptor) Validate() error {
	var missing []string

	if d.URL == "" {
		missing = append(missing, "url")
	}

	if d.Name == "" {
		missing = append(missing, "name")
	}

	if d.SHA256Hash == "" {
		missing = append(missing, "sha256hash")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required fields %v: %w", missing, installer.ErrParse)
	}

	return nil
}

// Options configures a Resolver.
type Options struct {
	// MetadataURL is the fully composed "latest release" endpoint.
	MetadataURL string
	// Timeout bounds the whole request including the body.
	Timeout time.Duration
}

// Resolver fetches release descriptors. It makes exactly one attempt per call.
type Resolver struct {
	client *http.Client
	opts   Options
}

// NewResolver returns a Resolver that issues requests through client.
func NewResolver(client *http.Client, opts Options) *Resolver {
	return &Resolver{
		client: client,
		opts:   opts,
	}
}

// Resolve fetches and parses the latest release descriptor.
// Transport failures, timeouts and non-2xx responses wrap installer.ErrNetwork;
// malformed or incomplete bodies wrap installer.ErrParse.
func (r *Resolver) Resolve(ctx context.Context) (*Descriptor, error) {
	if r.opts.MetadataURL == "" {
		return nil, errEmptyURL
	}

	logger.Infof(ctx, "Requesting release from %s", r.opts.MetadataURL)

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	body, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var desc Descriptor
	if err = json.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("decode release metadata: %w: %w", installer.ErrParse, err)
	}

	if err = desc.Validate(); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Resolved release", "name", desc.Name, "url", desc.URL)

	return &desc, nil
}

func (r *Resolver) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.MetadataURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w: %w", installer.ErrNetwork, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request release metadata: %w: %w", installer.ErrNetwork, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if err = transport.CheckStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("read release metadata: %w: %w", installer.ErrNetwork, err)
	}

	return body, nil
}
