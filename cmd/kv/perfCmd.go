package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/cmd/util"
	"github.com/ValentinKolb/dCoord/lib/coord"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the coordination store",
		Long:    "Runs parallel benchmarks of the store operations against the configured backend and store. All keys start with __test and are deleted afterward.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for the coordination store")

	cfg, err := util.GetCoordConfig()
	if err != nil {
		return err
	}

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(cfg.String())
	fmt.Printf("Store: %s\n", viper.GetString("store"))
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	record := func(test string, result testing.BenchmarkResult) {
		results[test] = result
		printResult(test, result)
	}

	record("put", benchmark("put", false, func(key string, _ int) error {
		return kvStore.Put(key, []byte("test"), 0)
	}))

	record("put-ttl", benchmark("put-ttl", false, func(key string, _ int) error {
		return kvStore.Put(key, []byte("test"), 60)
	}))

	record("get", benchmark("get", true, func(key string, _ int) error {
		_, _, err := kvStore.Get(key)
		return err
	}))

	record("get-missing", benchmark("get-missing", false, func(key string, _ int) error {
		_, _, err := kvStore.Get(key)
		return err
	}))

	// every put-if-absent is followed by a delete, like a lock and its release
	record("put-if-absent", benchmark("put-if-absent", false, func(key string, _ int) error {
		stored, err := kvStore.PutIfAbsent(key, []byte("test"), 0)
		if err == nil && stored {
			err = kvStore.Delete(key)
		}
		return err
	}))

	record("incr-decr", benchmark("incr-decr", false, func(key string, i int) error {
		var err error
		if i%2 == 0 {
			_, err = kvStore.Increment(key, 0)
		} else {
			_, err = kvStore.Decrement(key)
		}
		return err
	}))

	record("mixed", benchmark("mixed", true, func(key string, i int) error {
		var err error
		switch i % 4 {
		case 0: // put
			err = kvStore.Put(key, []byte("test"), 0)
		case 1: // get
			_, _, err = kvStore.Get(key)
		case 2: // delete
			err = kvStore.Delete(key)
		case 3: // put-if-absent
			_, err = kvStore.PutIfAbsent(key, []byte("test"), 0)
		}
		return err
	}))

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, &cfg); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs op in parallel on the keys of test. If prefill is set, all keys are written first.
func benchmark(test string, prefill bool, op func(key string, i int) error) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test) {
			return
		}

		// prepare keys
		getKey, iter := getKeys(test)

		if prefill {
			iter(func(k string) {
				if err := kvStore.Put(k, []byte("test"), 0); err != nil {
					log.Printf("(%s) - error setting key: %v\n", test, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if err := kvStore.Delete(k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", test, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if err := op(getKey(counter), counter); err != nil {
					log.Printf("(%s) - error performing operation: %v\n", test, err)
				}
				counter++
			}
		})
	})
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	return slices.Contains(perfSkip, test)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *coord.Config) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Backend", "Endpoints", "Store", "Serializer", "Transport",
		"Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			string(config.Backend),
			strings.Join(config.Endpoints, ";"),
			viper.GetString("store"),
			config.RPC.Serializer,
			config.RPC.Transport,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
