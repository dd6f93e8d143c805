package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/config"
	"github.com/marmos91/dittoxfer/pkg/pool"
)

// runWorker serves requests forwarded by the parent over stdin/stdout.
// Stdout carries the IPC stream, so logs go to stderr.
func runWorker(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("worker takes no arguments")
	}

	logger.SetWriter(os.Stderr)
	if level := os.Getenv("DITTOXFER_LOGGING_LEVEL"); level != "" {
		logger.SetLevel(level)
	}

	// The parent owns shutdown: it closes our stdin. Interrupts sent to the
	// process group must not kill a worker mid-request.
	signal.Ignore(os.Interrupt, syscall.SIGTERM)

	return pool.RunWorker(context.Background(), os.Stdin, os.Stdout, config.WorkerFactory)
}
