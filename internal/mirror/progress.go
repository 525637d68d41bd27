package mirror

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// Progress receives the two pipeline event streams: one tick per
// catalog page fetched and one tick per asset processed (including
// assets skipped by mirror mode). Implementations must tolerate
// concurrent AssetProcessed calls. Progress is presentation only and
// carries no correctness contract.
type Progress interface {
	PageFetched()
	StartAssets(total int)
	AssetProcessed()
	Finish()
}

// NopProgress discards all events.
type NopProgress struct{}

func (NopProgress) PageFetched() {}

func (NopProgress) StartAssets(int) {}

func (NopProgress) AssetProcessed() {}

func (NopProgress) Finish() {}

// The page count is open-ended, so the catalog bar only shows a counter.
var pageBarTemplate pb.ProgressBarTemplate = `{{string . "prefix"}} {{counters . }} pages`

type barProgress struct {
	out    io.Writer
	pages  *pb.ProgressBar
	assets *pb.ProgressBar
}

// NewBarProgress renders the two pipeline stages as terminal progress
// bars on out.
func NewBarProgress(out io.Writer) Progress {
	pages := pageBarTemplate.New(0)
	pages.Set("prefix", "catalog:")
	pages.SetWriter(out)
	return &barProgress{out: out, pages: pages}
}

func (b *barProgress) PageFetched() {
	if !b.pages.IsStarted() {
		b.pages.Start()
	}
	b.pages.Increment()
}

func (b *barProgress) StartAssets(total int) {
	b.pages.Finish()
	b.assets = pb.New(total)
	b.assets.SetWriter(b.out)
	b.assets.Start()
}

func (b *barProgress) AssetProcessed() {
	b.assets.Increment()
}

func (b *barProgress) Finish() {
	if b.assets != nil {
		b.assets.Finish()
	}
}
