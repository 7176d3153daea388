// Package main provides a performance benchmarking tool for the tzcluster CLI.
// It synthesizes post datasets of increasing size, runs the analyze command
// against each one several times, treating the first successful run as cold and
// averaging the rest as warm, and writes the timings to a CSV file.
//
// Prerequisites:
// - tzcluster binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory where datasets and the SQLite store are created
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/tzcluster/internal/parquet"
)

// BenchmarkResult holds the result of a benchmark run (no-store average, cold run and average of warm runs).
type BenchmarkResult struct {
	Dataset     string
	Format      string
	NoStoreTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	NoStoreRuns int
	StoreRuns   int
	Sizes       []int
	Formats     []string
}

// peakHoursUTC are the activity peaks the synthetic posts are drawn around.
var peakHoursUTC = []float64{14, 1, 9}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     os.Args[1],
		Timeout:     5 * time.Minute,
		NoStoreRuns: 3,
		StoreRuns:   4,
		Sizes:       []int{1_000, 10_000, 100_000, 1_000_000},
		Formats:     []string{"jsonl", "parquet"},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the tzcluster binary and work directory exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("tzcluster"); err != nil {
		return fmt.Errorf("tzcluster binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// runBenchmarks executes every size and format combination
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d sizes, %v timeout, no-store: %d runs, store: %d runs\n",
		len(config.Sizes), config.Timeout, config.NoStoreRuns, config.StoreRuns)

	for _, size := range config.Sizes {
		posts := synthesizePosts(size)
		for _, format := range config.Formats {
			path := filepath.Join(config.WorkDir, fmt.Sprintf("posts_%d.%s", size, format))
			if err := writeDataset(posts, path, format); err != nil {
				fmt.Printf("Skipping %s: %v\n", path, err)
				continue
			}
			results = append(results, runBenchmarkSuite(config, path, format, size))
		}
	}

	return results
}

// synthesizePosts draws n posts around the fixed peak hours with a seeded source.
func synthesizePosts(n int) []parquet.Post {
	rng := rand.New(rand.NewPCG(42, 42))
	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]parquet.Post, n)
	for i := range posts {
		peak := peakHoursUTC[i%len(peakHoursUTC)]
		hour := peak + rng.NormFloat64()*1.5
		ts := base.AddDate(0, 0, rng.IntN(30)).Add(time.Duration(hour * float64(time.Hour)))
		posts[i] = parquet.Post{ID: fmt.Sprintf("post-%d", i), CreatedAt: ts.Format(time.RFC3339)}
	}
	return posts
}

// writeDataset stores posts as JSONL or Parquet.
func writeDataset(posts []parquet.Post, path, format string) error {
	if format == "parquet" {
		return parquet.WritePostsParquet(posts, path)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	for _, p := range posts {
		if err := encoder.Encode(map[string]string{"id": p.ID, "created_at": p.CreatedAt}); err != nil {
			return err
		}
	}
	return file.Close()
}

// runBenchmarkSuite runs both no-store and store benchmarks for a dataset
func runBenchmarkSuite(config BenchmarkConfig, path, format string, size int) BenchmarkResult {
	dataset := fmt.Sprintf("%d", size)
	fmt.Printf("Running analyze on %s\n", filepath.Base(path))

	// Helper to run a benchmark phase
	runPhase := func(storeBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, path, storeBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	// Phase 1: No-store runs
	_, noStoreAvg := runPhase("none", config.NoStoreRuns, "No-store")

	// Phase 2: SQLite runs
	coldTime, warmAvg := runPhase("sqlite", config.StoreRuns, "Store")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-store average: %s, Cold time: %s, Warm average: %s\n", noStoreAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Dataset:     dataset,
		Format:      format,
		NoStoreTime: noStoreAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes tzcluster analyze multiple times and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, path, storeBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := []string{
		"analyze", path,
		"--store-backend", storeBackend,
		"--store-db-connect", storeConnect(config, storeBackend),
		"--color", "no",
	}

	var times []float64
	for range numRuns {
		start := time.Now()

		cmd := exec.Command("tzcluster", args...)
		cmd.Dir = config.WorkDir

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			// Timeout - don't add to times
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// storeConnect keeps the benchmark SQLite file inside the work directory.
func storeConnect(config BenchmarkConfig, storeBackend string) string {
	if storeBackend != "sqlite" {
		return ""
	}
	return filepath.Join(config.WorkDir, "benchmark.db")
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	return strings.Contains(string(output), "Analysis completed in")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("tzcluster_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"posts", "format", "no_store_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		if err := writer.Write([]string{result.Dataset, result.Format, result.NoStoreTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s %-8s: No-store: %s, Cold: %s, Warm: %s\n",
			result.Dataset, result.Format, result.NoStoreTime, result.ColdTime, result.WarmTime)
	}
}
