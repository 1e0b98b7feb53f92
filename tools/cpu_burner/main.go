package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/softdevteam/msrsampler/pkg/linux/cpulist"
)

var (
	rootCmd = &cobra.Command{
		Use:          "cpu_burner --duration DURATION",
		Short:        "Burn some CPU to make the frequency counters advance",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return run()
		},
	}

	duration time.Duration
	cores    []int
)

func init() {
	rootCmd.Flags().DurationVar(&duration, "duration", time.Second*10, "duration of cpu burning")
	rootCmd.Flags().IntSliceVar(&cores, "core", nil, "core to burn (default - all online cores)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(cores) == 0 {
		online, err := cpulist.ListOnlineCPUs()
		if err != nil {
			return err
		}
		cores = online
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, core := range cores {
		g.Go(func() error {
			return burn(ctx, core)
		})
	}
	return g.Wait()
}

func burn(ctx context.Context, core int) error {
	// Never unlocked, the thread dies with the goroutine.
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to pin to core %d: %w", core, err)
	}

	//nolint:sa5004
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
