package testing

import (
	"fmt"
	"testing"

	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustWrite writes a file and fails the test if it errors.
func mustWrite(t *testing.T, s store.FileStore, name string, data []byte) {
	t.Helper()
	err := s.Write(testContext(), name, data)
	require.NoError(t, err, "Write(%q) should succeed", name)
}

// mustRead reads a file and fails the test if it errors.
func mustRead(t *testing.T, s store.FileStore, name string) []byte {
	t.Helper()
	data, err := s.Read(testContext(), name)
	require.NoError(t, err, "Read(%q) should succeed", name)
	return data
}

// mustList lists the store and fails the test if it errors.
func mustList(t *testing.T, s store.FileStore) []string {
	t.Helper()
	names, err := s.List(testContext())
	require.NoError(t, err, "List should succeed")
	return names
}

// assertContentEquals checks that name holds exactly expected.
func assertContentEquals(t *testing.T, s store.FileStore, name string, expected []byte) {
	t.Helper()
	actual := mustRead(t, s, name)
	assert.Equal(t, len(expected), len(actual), "content length mismatch for %q", name)
	assert.Equal(t, expected, actual, "content mismatch for %q", name)
}

// generateTestData creates deterministic data of the given size, varied by seed.
func generateTestData(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i%251) + seed
	}
	return data
}

func testName(prefix string, i int) string {
	return fmt.Sprintf("%s-%03d.bin", prefix, i)
}
