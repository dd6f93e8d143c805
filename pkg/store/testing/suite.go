package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittoxfer/pkg/store"
)

// StoreTestSuite is the conformance suite for store.FileStore
// implementations. It tests the interface contract only, so every backend
// (memory, filesystem, badger, S3) runs the same cases.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func() store.FileStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() store.FileStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("NameValidation", suite.RunNameTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
	t.Run("Lifecycle", suite.RunLifecycleTests)
}

func testContext() context.Context {
	return context.Background()
}
