package mirror

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nexusmirror/nexusmirror/internal/nexus"
)

// downloadAttempts bounds the re-download loop for a single asset when
// SHA-1 verification keeps failing.
const downloadAttempts = 10

// HTTPClient handles asset downloading with bounded verification
// retries and a connection cap shared across workers.
type HTTPClient struct {
	client    *http.Client
	semaphore chan struct{}
	mirrorID  string
	creds     *nexus.Credentials
}

// NewHTTPClient creates a new HTTP client for downloads.
func NewHTTPClient(maxConns int, mirrorID string, creds *nexus.Credentials, tlsConfig *TLSConfig) *HTTPClient {
	semaphore := make(chan struct{}, maxConns)

	// Pre-fill the semaphore with tokens
	for i := 0; i < maxConns; i++ {
		semaphore <- struct{}{}
	}

	return &HTTPClient{
		client:    clonedTransport(tlsConfig),
		semaphore: semaphore,
		mirrorID:  mirrorID,
		creds:     creds,
	}
}

// FetchCatalog walks the repository's paginated asset listing using
// this client's connection pool and credentials.
func (h *HTTPClient) FetchCatalog(ctx context.Context, server *url.URL, repo string, maxPages int, pageTick func()) ([]nexus.Asset, error) {
	return nexus.FetchCatalog(ctx, h.client, server, repo, h.creds, maxPages, pageTick)
}

// acquire takes a semaphore token, or returns early when ctx is done.
func (h *HTTPClient) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.semaphore:
		return nil
	}
}

func (h *HTTPClient) release() {
	h.semaphore <- struct{}{}
}

// DownloadOutcome reports the result of a single asset download.
// It is used for logging only and never persisted.
type DownloadOutcome struct {
	Path     string
	Attempts int
	Verified bool
}

// DownloadAsset fetches one asset, persists it at its path under root
// and, when verify is true, checks the written file against the
// server-declared SHA-1 digest, re-downloading from scratch up to
// downloadAttempts times on mismatch.
//
// All errors are marked ErrDownload; checksum exhaustion additionally
// carries ErrChecksum and transport failures nexus.ErrNetwork.
// Transport failures are not retried here: the underlying client
// already retried at a lower level, so a surfaced failure indicates a
// persistent connectivity problem.
func (h *HTTPClient) DownloadAsset(ctx context.Context, asset *nexus.Asset, root string, verify bool) (*DownloadOutcome, error) {
	filePath := asset.LocalPath(root)

	// MkdirAll is safe under concurrent calls for sibling assets.
	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return nil, errors.Mark(errors.Wrap(err, asset.Path()), ErrDownload)
	}

	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, errors.Mark(ctx.Err(), ErrDownload)
		default:
		}

		resp, err := h.get(ctx, asset.DownloadURL())
		if err != nil {
			err = errors.Wrapf(err, "fetching %s", asset.DownloadURL())
			return nil, errors.Mark(errors.Mark(err, nexus.ErrNetwork), ErrDownload)
		}

		err = writeFile(filePath, resp.Body)
		closeRespBody(resp)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, filePath), ErrDownload)
		}

		if !verify {
			slog.Info("downloaded (not verified!)", "repo", h.mirrorID, "path", filePath)
			return &DownloadOutcome{Path: filePath, Attempts: attempt, Verified: false}, nil
		}

		digest, err := nexus.SHA1File(filePath)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, filePath), ErrDownload)
		}
		if asset.MatchesSHA1(digest) {
			slog.Info("downloaded and verified", "repo", h.mirrorID, "path", filePath, "attempt", attempt)
			return &DownloadOutcome{Path: filePath, Attempts: attempt, Verified: true}, nil
		}

		slog.Warn("SHA-1 verification failed, retrying", "repo", h.mirrorID, "path", filePath, "attempt", attempt, "max_attempts", downloadAttempts)
	}

	err := errors.Newf("%s: repeated SHA-1 verification failure after %d attempts", filePath, downloadAttempts)
	return nil, errors.Mark(errors.Mark(err, ErrChecksum), ErrDownload)
}

// get issues an authenticated GET for raw asset bytes.
func (h *HTTPClient) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if h.creds != nil {
		req.SetBasicAuth(h.creds.Username, h.creds.Password)
	}
	return h.client.Do(req)
}

// writeFile writes body to filePath, truncating any existing content
// so retries never accumulate partial writes.
func writeFile(filePath string, body io.Reader) error {
	f, err := os.Create(filePath) // #nosec G304 - filePath is rooted under the configured output directory
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// closeRespBody closes HTTP response body.
func closeRespBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}

// clonedTransport creates a new HTTP client with optimized transport
// settings and TLS configuration.
func clonedTransport(tlsConfig *TLSConfig) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxIdleConnsPerHost = 10
	tr.IdleConnTimeout = 90 * time.Second

	if tlsConfig != nil {
		customTLSConfig, err := tlsConfig.BuildTLSConfig()
		if err != nil {
			slog.Error("failed to build TLS config, using defaults", "error", err)
		} else {
			tr.TLSClientConfig = customTLSConfig
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   0, // no timeout; timeout is controlled by context
	}
}
