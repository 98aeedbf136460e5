package db

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonasWeidner/oDB/cmd/util"
	"github.com/JonasWeidner/oDB/lib/engine"
	"github.com/JonasWeidner/oDB/lib/key"
	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for oDB servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfDatabase   = "__perf"
	perfCollection = "bench"
	perfEventsColl = "events"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfValueSizeB = 128
	perfOpsPerTest = 10000
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	flag := "threads"
	perfTestCmd.Flags().Int(flag, 10, util.WrapString("Number of threads to use for the benchmark"))
	flag = "keys"
	perfTestCmd.Flags().Int(flag, 100, util.WrapString("How many different keys to use for the tests"))
	flag = "value-size"
	perfTestCmd.Flags().Int(flag, 128, util.WrapString("Size of the values written during the tests (in bytes)"))
	flag = "ops"
	perfTestCmd.Flags().Int(flag, 10000, util.WrapString("Number of operations per test"))
	flag = "skip"
	perfTestCmd.Flags().String(flag, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put-at,get)"))
	flag = "csv"
	perfTestCmd.Flags().String(flag, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfKeySpread = viper.GetInt("keys")
	perfValueSizeB = viper.GetInt("value-size")
	perfOpsPerTest = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult holds the latency distribution of one benchmark
type perfResult struct {
	ops       int64
	elapsed   time.Duration
	histogram metrics.Histogram
}

func (r perfResult) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.ops) / r.elapsed.Seconds()
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for oDB servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Keys: %d, Value Size: %d bytes, Ops: %d\n",
		perfNumThreads, perfKeySpread, perfValueSizeB, perfOpsPerTest)
	fmt.Println()

	// Open a scratch database for the benchmark
	schema := odb.Schema{
		Name:    perfDatabase,
		Version: 1,
		Collections: []odb.Collection{
			{Name: perfCollection, Key: engine.KeyExplicit},
			{Name: perfEventsColl, Key: engine.KeyGenerated},
		},
	}
	if err := rpcClient.Open(schema); err != nil {
		return fmt.Errorf("failed to open benchmark database: %w", err)
	}
	defer func() {
		if err := rpcClient.DeleteDatabase(perfDatabase); err != nil {
			log.Printf("error deleting benchmark database: %v\n", err)
		}
	}()

	fmt.Println("starting tests...")
	fmt.Println()

	value := make([]byte, perfValueSizeB)

	// Create results map
	results := make(map[string]perfResult)

	results["put-at"] = runBenchmark("put-at", func(i int) error {
		return rpcClient.PutAt(perfDatabase, perfCollection, perfKey(i), value)
	})
	printResult("put-at", results["put-at"])

	results["get"] = runBenchmark("get", func(i int) error {
		_, _, err := rpcClient.Get(perfDatabase, perfCollection, perfKey(i))
		return err
	})
	printResult("get", results["get"])

	results["insert"] = runBenchmark("insert", func(i int) error {
		_, err := rpcClient.Insert(perfDatabase, perfEventsColl, value)
		return err
	})
	printResult("insert", results["insert"])

	results["count"] = runBenchmark("count", func(i int) error {
		_, err := rpcClient.Count(perfDatabase, perfCollection, key.Range{})
		return err
	})
	printResult("count", results["count"])

	results["mixed"] = runBenchmark("mixed", func(i int) error {
		switch i % 4 {
		case 0:
			return rpcClient.PutAt(perfDatabase, perfCollection, perfKey(i), value)
		case 1:
			_, _, err := rpcClient.Get(perfDatabase, perfCollection, perfKey(i))
			return err
		case 2:
			_, err := rpcClient.Insert(perfDatabase, perfEventsColl, value)
			return err
		default:
			return rpcClient.Delete(perfDatabase, perfCollection, perfKey(i))
		}
	})
	printResult("mixed", results["mixed"])

	results["delete"] = runBenchmark("delete", func(i int) error {
		return rpcClient.Delete(perfDatabase, perfCollection, perfKey(i))
	})
	printResult("delete", results["delete"])

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// perfKey maps an operation counter onto a bounded key space
func perfKey(i int) key.Key {
	return key.Int(i % perfKeySpread)
}

// runBenchmark spreads perfOpsPerTest calls of op over perfNumThreads
// goroutines and records per-call latency in an exponentially decaying
// sample
func runBenchmark(name string, op func(i int) error) perfResult {
	if shouldSkip(name) {
		return perfResult{}
	}

	histogram := metrics.NewHistogram(metrics.NewExpDecaySample(1028, 0.015))

	var (
		wg      sync.WaitGroup
		counter atomic.Int64
	)

	start := time.Now()
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := counter.Add(1)
				if i > int64(perfOpsPerTest) {
					return
				}
				opStart := time.Now()
				if err := op(int(i)); err != nil {
					log.Printf("(%s) - error performing operation: %v\n", name, err)
				}
				histogram.Update(time.Since(opStart).Nanoseconds())
			}
		}()
	}
	wg.Wait()

	return perfResult{
		ops:       int64(perfOpsPerTest),
		elapsed:   time.Since(start),
		histogram: histogram,
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.histogram == nil {
		fmt.Printf("%-10sskipped\n", test)
		return
	}

	p := result.histogram.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("%-10s%8.0f ops/sec\tmean=%s\tp50=%s\tp95=%s\tp99=%s\n",
		test,
		result.opsPerSec(),
		time.Duration(result.histogram.Mean()),
		time.Duration(p[0]),
		time.Duration(p[1]),
		time.Duration(p[2]),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetClientConfig()

	// Write header
	header := []string{
		"Test", "OpsPerSec", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "Keys", "ValueSizeBytes", "Ops",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var mean, p50, p95, p99, opsPerSec float64
		var skipped string

		if result.histogram == nil {
			skipped = "true"
		} else {
			skipped = "false"
			p := result.histogram.Percentiles([]float64{0.5, 0.95, 0.99})
			mean = result.histogram.Mean()
			p50, p95, p99 = p[0], p[1], p[2]
			opsPerSec = result.opsPerSec()
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", mean),
			fmt.Sprintf("%.0f", p50),
			fmt.Sprintf("%.0f", p95),
			fmt.Sprintf("%.0f", p99),
			skipped,
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfValueSizeB),
			strconv.Itoa(perfOpsPerTest),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
