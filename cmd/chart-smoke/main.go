package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/nakshatra/internal/smoke"
)

const (
	defaultNumProfiles = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numProfiles = flag.Int("profiles", defaultNumProfiles, "Number of profiles to generate and register")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed        = flag.Uint64("seed", 0, "Generator seed (0 picks one from the clock)")
		outputFile  = flag.String("output", "", "Output file for generated profiles")
		logFile     = flag.String("log", "", "Log file for test output (default: smoke_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Log every failed registration")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoke.ShowHelp()
		return
	}

	if err := smoke.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &smoke.Config{
		BaseURL:     *baseURL,
		NumProfiles: *numProfiles,
		Workers:     *workers,
		Timeout:     *timeout,
		Seed:        *seed,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}
	if _, err := smoke.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Smoke test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
