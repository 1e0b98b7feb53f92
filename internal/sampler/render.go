package sampler

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Render prints the before/after readings and the per-core frequency ratio.
func Render(w io.Writer, round *Round) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "core\taperf\tmperf\tctr1\tΔaperf\tΔmperf\tΔctr1\tratio\t\n")
	for core := range round.After {
		before, after, d := round.Before[core], round.After[core], round.Deltas[core]
		fmt.Fprintf(tw, "%02d\t%s → %s\t%s → %s\t%s → %s\t%s\t%s\t%s\t%.3f\t\n",
			core,
			humanize.Comma(int64(before.APerf)), humanize.Comma(int64(after.APerf)),
			humanize.Comma(int64(before.MPerf)), humanize.Comma(int64(after.MPerf)),
			humanize.Comma(int64(before.Ctr1)), humanize.Comma(int64(after.Ctr1)),
			humanize.Comma(int64(d.APerf)),
			humanize.Comma(int64(d.MPerf)),
			humanize.Comma(int64(d.Ctr1)),
			d.Ratio(),
		)
	}

	return tw.Flush()
}
