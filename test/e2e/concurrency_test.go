package e2e

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittoxfer/pkg/client"
)

func TestConcurrentDistinctUploads(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		const clients = 20
		ctx := context.Background()

		payloads := make([][]byte, clients)
		for i := range payloads {
			payloads[i] = randomBytes(t, 64<<10)
		}

		var wg sync.WaitGroup
		errs := make(chan error, clients)
		for i := range clients {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := client.Dial(ctx, tc.Addr)
				if err != nil {
					errs <- err
					return
				}
				defer func() { _ = c.Close() }()
				if _, err := c.Upload(ctx, fileName("distinct", i), payloads[i]); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("Upload failed: %v", err)
		}

		c := tc.Dial()
		names, err := c.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(names) != clients {
			t.Fatalf("Expected %d files, got %d", clients, len(names))
		}
		for i := range clients {
			got, err := c.Get(ctx, fileName("distinct", i))
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !bytes.Equal(got, payloads[i]) {
				t.Errorf("File %d has wrong content", i)
			}
		}
	})
}

// Concurrent uploads of one name must leave exactly one complete body.
func TestConcurrentSameNameUploads(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		const clients = 8
		ctx := context.Background()

		payloads := make([][]byte, clients)
		for i := range payloads {
			payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 256<<10)
		}

		var wg sync.WaitGroup
		for i := range clients {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := client.Dial(ctx, tc.Addr)
				if err != nil {
					t.Errorf("Dial failed: %v", err)
					return
				}
				defer func() { _ = c.Close() }()
				if _, err := c.Upload(ctx, "contended.bin", payloads[i]); err != nil {
					t.Errorf("Upload failed: %v", err)
				}
			}()
		}
		wg.Wait()

		got, err := tc.Dial().Get(ctx, "contended.bin")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		for _, p := range payloads {
			if bytes.Equal(got, p) {
				return
			}
		}
		t.Error("Final content matches none of the uploaded bodies")
	})
}

// With a pool of one, a second connection is not served until the first
// one closes.
func TestPoolBoundsConcurrentConnections(t *testing.T) {
	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			tc := NewTestContext(t, config, WithPoolSize(1))
			ctx := context.Background()

			first := tc.Dial()
			if _, err := first.List(ctx); err != nil {
				t.Fatalf("First client failed: %v", err)
			}

			second := tc.Dial()
			result := make(chan error, 1)
			go func() {
				_, err := second.List(ctx)
				result <- err
			}()

			select {
			case err := <-result:
				t.Fatalf("Second client served while the pool was busy (err=%v)", err)
			case <-time.After(300 * time.Millisecond):
			}

			_ = first.Close()

			select {
			case err := <-result:
				if err != nil {
					t.Fatalf("Second client failed: %v", err)
				}
			case <-time.After(10 * time.Second):
				t.Fatal("Second client was never served")
			}
		})
	}
}
