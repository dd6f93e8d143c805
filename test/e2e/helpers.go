package e2e

import (
	"crypto/rand"
	"fmt"
	"testing"
)

// runOnAllConfigs is a helper that runs a test on all configurations
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			testFunc(t, NewTestContext(t, config))
		})
	}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("Failed to generate data: %v", err)
	}
	return data
}

func fileName(prefix string, i int) string {
	return fmt.Sprintf("%s_%03d.bin", prefix, i)
}
