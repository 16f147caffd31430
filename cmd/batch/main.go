// Package main runs a YAML file of routing jobs and prints one JSON result per line.
//
//	routekit-batch -jobs jobs.yaml [-config routekit.yaml] [-strict] > results.jsonl
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routekit/internal/config"
	"github.com/breatheroute/routekit/internal/routing/providers"
	"github.com/breatheroute/routekit/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	jobsPath := flag.String("jobs", "", "path to the YAML job file (required)")
	configPath := flag.String("config", os.Getenv("ROUTEKIT_CONFIG"), "path to a YAML config file")
	strict := flag.Bool("strict", false, "report provider rejections as errors instead of empty results")
	flag.Parse()

	// Results own stdout; logs and dry runs go to stderr.
	log := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("service", "routekit-batch").
		Str("version", Version).
		Logger()

	if *jobsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: routekit-batch -jobs FILE [-config FILE] [-strict]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	jobs, err := worker.LoadJobFile(*jobsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid job file")
	}

	opts := []providers.Option{providers.WithDryRunOutput(os.Stderr)}
	if !*strict {
		opts = append(opts, providers.WithSkipAPIError())
	}
	service, _ := providers.NewService(cfg.Providers, log, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := worker.NewBatchJob(service, jobs, log).Run(ctx, os.Stdout)
	if err != nil {
		log.Error().Err(err).Msg("batch aborted")
		os.Exit(1)
	}
	if summary.Failed > 0 {
		os.Exit(3)
	}
}
