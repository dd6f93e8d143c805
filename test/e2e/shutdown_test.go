package e2e

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"
)

func isConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

func TestShutdownClosesIdleConnections(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()
		if _, err := c.List(context.Background()); err != nil {
			t.Fatalf("List failed: %v", err)
		}

		start := time.Now()
		tc.Cleanup()
		if elapsed := time.Since(start); elapsed > 10*time.Second {
			t.Errorf("Shutdown took %v", elapsed)
		}

		if _, err := c.List(context.Background()); err == nil {
			t.Error("Expected request after shutdown to fail")
		}

		if conn, err := net.DialTimeout("tcp", tc.Addr, time.Second); err == nil {
			_ = conn.Close()
			t.Error("Expected listener to be closed after shutdown")
		}
	})
}
