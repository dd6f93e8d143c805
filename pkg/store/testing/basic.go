package testing

import (
	"testing"

	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests covers the list/read/write/delete round trips.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("List_Empty", suite.testListEmpty)
	t.Run("Write_Read_RoundTrip", suite.testRoundTrip)
	t.Run("Write_Empty", suite.testWriteEmpty)
	t.Run("Write_Binary", suite.testWriteBinary)
	t.Run("Write_Large", suite.testWriteLarge)
	t.Run("Write_Overwrite", suite.testOverwrite)
	t.Run("List_Sorted", suite.testListSorted)
	t.Run("List_NoDuplicates", suite.testListNoDuplicates)
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
	t.Run("Delete_Twice", suite.testDeleteTwice)
	t.Run("Read_ReturnsCopy", suite.testReadReturnsCopy)
	t.Run("Names_WithSpaces", suite.testNamesWithSpaces)
}

// ============================================================================
// List
// ============================================================================

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	assert.Empty(t, mustList(t, s))
}

func (suite *StoreTestSuite) testListSorted(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	for _, name := range []string{"c.txt", "a.txt", "b", "README"} {
		mustWrite(t, s, name, []byte(name))
	}

	assert.Equal(t, []string{"README", "a.txt", "b", "c.txt"}, mustList(t, s))
}

func (suite *StoreTestSuite) testListNoDuplicates(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	mustWrite(t, s, "dup.txt", []byte("1"))
	mustWrite(t, s, "dup.txt", []byte("2"))

	assert.Equal(t, []string{"dup.txt"}, mustList(t, s))
}

// ============================================================================
// Write / Read
// ============================================================================

func (suite *StoreTestSuite) testRoundTrip(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	data := []byte("Hello, World!")
	mustWrite(t, s, "hello.txt", data)

	assertContentEquals(t, s, "hello.txt", data)
	assert.Contains(t, mustList(t, s), "hello.txt")
}

func (suite *StoreTestSuite) testWriteEmpty(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	mustWrite(t, s, "empty", nil)

	assert.Empty(t, mustRead(t, s, "empty"))
	assert.Equal(t, []string{"empty"}, mustList(t, s))
}

func (suite *StoreTestSuite) testWriteBinary(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	data := []byte{0x00, 0xff, '\r', '\n', '\r', '\n', 0x7f, 0x80}
	mustWrite(t, s, "binary.dat", data)

	assertContentEquals(t, s, "binary.dat", data)
}

func (suite *StoreTestSuite) testWriteLarge(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	data := generateTestData(5<<20, 7)
	mustWrite(t, s, "large.bin", data)

	assertContentEquals(t, s, "large.bin", data)
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	mustWrite(t, s, "file.txt", []byte("old data that is longer"))
	mustWrite(t, s, "file.txt", []byte("new"))

	assertContentEquals(t, s, "file.txt", []byte("new"))
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	_, err := s.Read(testContext(), "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func (suite *StoreTestSuite) testReadReturnsCopy(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	data := []byte("original")
	mustWrite(t, s, "copy.txt", data)
	data[0] = 'X'

	got := mustRead(t, s, "copy.txt")
	got[1] = 'Y'

	assertContentEquals(t, s, "copy.txt", []byte("original"))
}

func (suite *StoreTestSuite) testNamesWithSpaces(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	mustWrite(t, s, "my report (final).txt", []byte("x"))

	assertContentEquals(t, s, "my report (final).txt", []byte("x"))
	assert.Equal(t, []string{"my report (final).txt"}, mustList(t, s))
}

// ============================================================================
// Delete
// ============================================================================

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	mustWrite(t, s, "a.txt", []byte("a"))
	mustWrite(t, s, "b.txt", []byte("b"))

	require.NoError(t, s.Delete(testContext(), "a.txt"))

	_, err := s.Read(testContext(), "a.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"b.txt"}, mustList(t, s))
}

func (suite *StoreTestSuite) testDeleteNotFound(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	assert.ErrorIs(t, s.Delete(testContext(), "ghost.txt"), store.ErrNotFound)
}

func (suite *StoreTestSuite) testDeleteTwice(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	mustWrite(t, s, "once.txt", []byte("1"))
	require.NoError(t, s.Delete(testContext(), "once.txt"))
	assert.ErrorIs(t, s.Delete(testContext(), "once.txt"), store.ErrNotFound)
}
