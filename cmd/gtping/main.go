package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tkjaer/gtping/internal/config"
	"github.com/tkjaer/gtping/internal/probe"
	"github.com/tkjaer/gtping/internal/shared"
)

func main() {
	args, err := config.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logFile, err := config.SetupLogging(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	slog.Debug("Starting GTP ping",
		"targets", args.Targets,
		"count", args.Count,
		"interval", args.Interval,
		"timeout", args.Timeout,
	)

	pm, err := probe.NewProbeManager(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create probe manager: %v\n", err)
		os.Exit(1)
	}

	// Ctrl+C stops all sessions; the partial results are still printed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := pm.Run(ctx)
	if err != nil {
		slog.Error("Probe manager error", "error", err)
		os.Exit(1)
	}

	slog.Debug("GTP ping completed", "interrupted", ctx.Err() != nil)

	if !anyReplies(results) {
		if logFile != nil {
			logFile.Close()
		}
		os.Exit(1)
	}
}

// anyReplies reports whether at least one target answered
func anyReplies(results []shared.Stats) bool {
	for _, s := range results {
		if !s.Failed() && s.Received > 0 {
			return true
		}
	}
	return false
}
