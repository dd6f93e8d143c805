package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittoxfer/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLifecycleTests covers cancellation and Close.
func (suite *StoreTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("CancelledContext", suite.testCancelledContext)
	t.Run("UseAfterClose", suite.testUseAfterClose)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	s := suite.NewStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Write(ctx, "a.txt", []byte("x")), context.Canceled)
	_, err = s.Read(ctx, "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Delete(ctx, "a.txt"), context.Canceled)
}

func (suite *StoreTestSuite) testUseAfterClose(t *testing.T) {
	s := suite.NewStore()
	mustWrite(t, s, "a.txt", []byte("x"))
	require.NoError(t, s.Close())

	_, err := s.List(testContext())
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, s.Write(testContext(), "b.txt", []byte("y")), store.ErrClosed)
	_, err = s.Read(testContext(), "a.txt")
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, s.Delete(testContext(), "a.txt"), store.ErrClosed)
}
