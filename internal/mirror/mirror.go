package mirror

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nexusmirror/nexusmirror/internal/nexus"
)

// SyncOptions carries the per-invocation toggles supplied by the CLI.
type SyncOptions struct {
	// MirrorMode allows a pre-existing output directory and skips
	// assets whose local file already matches the listed size. The
	// skip is a fast size-only heuristic, not an integrity check.
	MirrorMode bool

	// NoVerify disables SHA-1 verification of downloaded assets.
	NoVerify bool

	// Quiet suppresses progress display.
	Quiet bool

	// Password is applied to every selected mirror that configures a
	// username. Resolved by the CLI (environment or prompt).
	Password string
}

// Mirror drives the fetch-then-drain pipeline for one configured
// repository: the full catalog is materialized first, then every
// asset is downloaded and verified.
type Mirror struct {
	id         string
	outDir     string
	repo       string
	mc         *MirrorConfig
	httpClient *HTTPClient
	progress   Progress
	mirrorMode bool
	verify     bool
}

// NewMirror constructs a Mirror for the given mirror id. Outside
// mirror mode a pre-existing output directory fails immediately with
// ErrPrecondition, before any network activity, to protect against
// mixing unrelated trees.
func NewMirror(mirrorID string, config *Config, opts SyncOptions, progress Progress) (*Mirror, error) {
	mc, ok := config.Mirrors[mirrorID]
	if !ok {
		return nil, errors.New("no such mirror: " + mirrorID)
	}

	// sanity checks
	if !IsValidID(mirrorID) {
		return nil, errors.New("invalid id: " + mirrorID)
	}
	if err := mc.Check(); err != nil {
		return nil, errors.Wrap(err, mirrorID)
	}

	outDir := filepath.Join(filepath.Clean(config.Dir), mirrorID)
	if !opts.MirrorMode {
		switch _, err := os.Stat(outDir); {
		case err == nil:
			return nil, errors.Mark(
				errors.Newf("output directory %s already exists; delete it or sync with --mirror", outDir),
				ErrPrecondition)
		case !os.IsNotExist(err):
			return nil, errors.Wrap(err, mirrorID)
		}
	}

	var creds *nexus.Credentials
	if mc.Username != "" {
		creds = &nexus.Credentials{Username: mc.Username, Password: opts.Password}
	}

	if progress == nil {
		progress = NopProgress{}
	}

	return &Mirror{
		id:         mirrorID,
		outDir:     outDir,
		repo:       mc.RepositoryName(mirrorID),
		mc:         mc,
		httpClient: NewHTTPClient(config.MaxConns, mirrorID, creds, &config.TLS),
		progress:   progress,
		mirrorMode: opts.MirrorMode,
		verify:     !opts.NoVerify,
	}, nil
}

// Update mirrors all assets of the repository. The first terminal
// download failure cancels queued and in-flight work; files already
// written stay in place.
func (m *Mirror) Update(ctx context.Context) error {
	slog.Info("fetching asset catalog", "repo", m.id, "server", m.mc.URL.String(), "repository", m.repo)
	catalog, err := m.httpClient.FetchCatalog(ctx, m.mc.URL.URL, m.repo, m.mc.MaxPages, m.progress.PageFetched)
	if err != nil {
		return errors.Wrap(err, m.id)
	}
	slog.Info("catalog fetched", "repo", m.id, "assets", len(catalog))

	m.progress.StartAssets(len(catalog))
	defer m.progress.Finish()

	slog.Info("downloading assets", "repo", m.id, "verify", m.verify, "mirror_mode", m.mirrorMode)
	group, ctx := errgroup.WithContext(ctx)
	skipped := 0

	for i := range catalog {
		asset := &catalog[i]

		if m.mirrorMode && m.upToDate(asset) {
			slog.Debug("skipping up-to-date asset", "repo", m.id, "path", asset.Path())
			skipped++
			m.progress.AssetProcessed()
			continue
		}

		if err := m.httpClient.acquire(ctx); err != nil {
			// a worker failed; stop scheduling
			break
		}

		group.Go(func() error {
			defer m.httpClient.release()
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := m.httpClient.DownloadAsset(ctx, asset, m.outDir, m.verify); err != nil {
				return err
			}
			m.progress.AssetProcessed()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return errors.Wrap(err, m.id)
	}

	slog.Info("update succeeded", "repo", m.id, "assets", len(catalog), "skipped", skipped)
	return nil
}

// upToDate implements the mirror-mode presence check: a regular file
// at the asset's local path whose size exactly matches the listing.
// Deliberately size-only, no hash comparison; use verify-enabled
// non-mirror runs for strong integrity.
func (m *Mirror) upToDate(asset *nexus.Asset) bool {
	st, err := os.Stat(asset.LocalPath(m.outDir))
	return err == nil && st.Mode().IsRegular() && st.Size() == asset.Size()
}
