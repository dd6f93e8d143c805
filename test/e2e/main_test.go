package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/pkg/config"
	"github.com/marmos91/dittoxfer/pkg/pool"
)

// workerEnv turns the test binary into a process pool worker.
const workerEnv = "DITTOXFER_E2E_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(workerEnv) == "1" {
		logger.SetWriter(os.Stderr)
		if err := pool.RunWorker(context.Background(), os.Stdin, os.Stdout, config.WorkerFactory); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Inherited by every worker process started below.
	_ = os.Setenv(workerEnv, "1")
	os.Exit(m.Run())
}
