package mirror

import "github.com/cockroachdb/errors"

// Sentinel errors classifying terminal run failures. They are attached
// with errors.Mark so classification survives wrapping; the CLI maps
// them to process exit statuses.
var (
	// ErrPrecondition marks an unsafe pre-run state, such as a
	// pre-existing output directory outside mirror mode. It is raised
	// before any network activity.
	ErrPrecondition = errors.New("unsafe pre-run state")

	// ErrChecksum marks SHA-1 verification failing on every download
	// attempt of a single asset. A corrupted mirror is worse than an
	// incomplete one, so this aborts the whole run.
	ErrChecksum = errors.New("repeated verification failure")

	// ErrDownload marks any terminal per-asset failure, including
	// checksum exhaustion and transport errors during an asset GET.
	ErrDownload = errors.New("asset download failed")
)
