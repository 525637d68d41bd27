package mirror

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Run synchronizes the given mirrors.
//
// mirrorIDs is a list of mirror IDs defined in the configuration file
// (keys in config.Mirrors). An empty list selects all of them. Every
// mirror is constructed, and its preconditions checked, before any
// network activity starts; the mirrors then update concurrently and
// the first failure cancels the rest.
func Run(ctx context.Context, config *Config, mirrorIDs []string, opts SyncOptions) error {
	if len(mirrorIDs) == 0 {
		for id := range config.Mirrors {
			mirrorIDs = append(mirrorIDs, id)
		}
		sort.Strings(mirrorIDs)
	}

	// Progress bars interleave badly across concurrent mirrors, so
	// they are only rendered for a single-mirror run.
	var progress Progress = NopProgress{}
	if !opts.Quiet && len(mirrorIDs) == 1 {
		progress = NewBarProgress(os.Stderr)
	}

	var mirrors []*Mirror
	for _, id := range mirrorIDs {
		m, err := NewMirror(id, config, opts, progress)
		if err != nil {
			return err
		}
		mirrors = append(mirrors, m)
	}

	slog.Info("sync starts", "mirrors", len(mirrors))

	group, ctx := errgroup.WithContext(ctx)
	for _, m := range mirrors {
		m := m
		group.Go(func() error {
			return m.Update(ctx)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	slog.Info("sync ends")
	return nil
}
