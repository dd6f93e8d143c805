package testing

import (
	"testing"

	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/stretchr/testify/assert"
)

var invalidNames = []string{
	"",
	".",
	"..",
	"../escape.txt",
	"../../etc/passwd",
	"sub/file.txt",
	"/etc/passwd",
	`..\windows.ini`,
	".hidden",
	"nul\x00.txt",
}

// RunNameTests checks that invalid names are rejected by every operation.
func (suite *StoreTestSuite) RunNameTests(t *testing.T) {
	t.Run("Read_InvalidName", suite.testReadInvalidName)
	t.Run("Write_InvalidName", suite.testWriteInvalidName)
	t.Run("Delete_InvalidName", suite.testDeleteInvalidName)
}

func (suite *StoreTestSuite) testReadInvalidName(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	for _, name := range invalidNames {
		_, err := s.Read(testContext(), name)
		assert.ErrorIs(t, err, store.ErrInvalidName, "Read(%q)", name)
	}
}

func (suite *StoreTestSuite) testWriteInvalidName(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	for _, name := range invalidNames {
		err := s.Write(testContext(), name, []byte("x"))
		assert.ErrorIs(t, err, store.ErrInvalidName, "Write(%q)", name)
	}
	assert.Empty(t, mustList(t, s), "rejected writes must not create files")
}

func (suite *StoreTestSuite) testDeleteInvalidName(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	for _, name := range invalidNames {
		err := s.Delete(testContext(), name)
		assert.ErrorIs(t, err, store.ErrInvalidName, "Delete(%q)", name)
	}
}
