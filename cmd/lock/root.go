package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ValentinKolb/dCoord/cmd/util"
	"github.com/ValentinKolb/dCoord/lib/coord"
	"github.com/ValentinKolb/dCoord/lib/errs"
	"github.com/ValentinKolb/dCoord/lib/lockmgr"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
)

var (
	coordinator *coord.Coordinator

	benchWorkers  int
	benchDuration time.Duration
	benchScopes   int

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:                "lock",
		Short:              "Perform lock operations",
		PersistentPreRunE:  setupLockClient,
		PersistentPostRunE: closeLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [category] [ids...]",
		Short: "Acquire a lock",
		Long:  "Acquire the lock of a category (e.g. odata-write, dav) and its scope ids. The lock has no expiry and is held until it is released.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key printed by the acquire command.",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}

	// benchCmd represents the bench command
	benchCmd = &cobra.Command{
		Use:   "bench [category]",
		Short: "Measure lock throughput under contention",
		Long:  "Starts workers that acquire and release locks of the category as fast as possible. The workers spread over --scopes scope ids, fewer scopes mean more contention.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBench,
	}
)

func init() {
	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)
	LockCommands.AddCommand(benchCmd)

	// Add backend flags to the lock command
	util.SetupCoordFlags(LockCommands)

	// Add flags specific to bench
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 8, util.WrapString("Number of concurrent workers"))
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 10*time.Second, util.WrapString("How long the benchmark runs"))
	benchCmd.Flags().IntVar(&benchScopes, "scopes", 1, util.WrapString("Number of different scope ids the workers lock"))
}

// setupLockClient opens the configured backend
func setupLockClient(cmd *cobra.Command, _ []string) (err error) {
	coordinator, err = util.OpenCoordinator(cmd)
	return err
}

func closeLockClient(_ *cobra.Command, _ []string) error {
	return coordinator.Close()
}

// runAcquire handles the acquire lock command
func runAcquire(cmd *cobra.Command, args []string) error {
	lock, err := coordinator.Locks.Acquire(cmd.Context(), args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	out, err := json.Marshal(lock)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	if err := coordinator.Locks.Release(&lockmgr.Lock{Key: args[0]}); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	fmt.Println("released")
	return nil
}

// runBench handles the bench command
func runBench(cmd *cobra.Command, args []string) error {
	category := "bench"
	if len(args) == 1 {
		category = args[0]
	}
	workers := max(1, benchWorkers)
	scopes := max(1, benchScopes)

	fmt.Printf("benchmarking %s locks: workers=%d scopes=%d duration=%s\n", category, workers, scopes, benchDuration)

	registry := gometrics.NewRegistry()
	held := gometrics.NewRegisteredTimer("held", registry)
	acquire := gometrics.NewRegisteredTimer("acquire", registry)
	contended := gometrics.NewRegisteredMeter("contended", registry)
	failed := gometrics.NewRegisteredMeter("failed", registry)

	ctx, cancel := context.WithTimeout(cmd.Context(), benchDuration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			scope := strconv.Itoa(w % scopes)
			for ctx.Err() == nil {
				start := time.Now()
				lock, err := coordinator.Locks.Acquire(ctx, category, scope)
				switch {
				case errors.Is(err, errs.ErrTooManyConcurrentRequests):
					contended.Mark(1)
					continue
				case err != nil:
					if ctx.Err() == nil {
						failed.Mark(1)
					}
					continue
				}
				acquire.UpdateSince(start)

				if err := coordinator.Locks.Release(lock); err != nil {
					failed.Mark(1)
				}
				held.UpdateSince(start)
			}
		}(w)
	}
	wg.Wait()

	printTimer("acquire", acquire.Snapshot())
	printTimer("acquire+release", held.Snapshot())
	fmt.Printf("%-16s%d\n", "contended", contended.Count())
	fmt.Printf("%-16s%d\n", "failed", failed.Count())
	return nil
}

func printTimer(name string, t gometrics.Timer) {
	if t.Count() == 0 {
		fmt.Printf("%-16sno samples\n", name)
		return
	}
	ps := t.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-16scount=%d rate=%.0f/s mean=%s p50=%s p99=%s max=%s\n",
		name, t.Count(), t.RateMean(),
		time.Duration(t.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(t.Max()))
}
