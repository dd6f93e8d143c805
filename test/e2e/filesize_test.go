package e2e

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

// FileSize represents a test file size
type FileSize struct {
	Name  string
	Bytes int
}

var (
	Size1KB   = FileSize{Name: "1KB", Bytes: 1 << 10}
	Size500KB = FileSize{Name: "500KB", Bytes: 500 << 10}
	Size1MB   = FileSize{Name: "1MB", Bytes: 1 << 20}
	Size10MB  = FileSize{Name: "10MB", Bytes: 10 << 20}

	// StandardFileSizes are run against every configuration.
	StandardFileSizes = []FileSize{Size1KB, Size500KB, Size1MB, Size10MB}
)

func TestFilesBySize(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()
		for _, size := range StandardFileSizes {
			t.Run(size.Name, func(t *testing.T) {
				content := randomBytes(t, size.Bytes)
				name := "file_" + size.Name + ".bin"

				if _, err := c.Upload(context.Background(), name, content); err != nil {
					t.Fatalf("Upload failed: %v", err)
				}
				got, err := c.Get(context.Background(), name)
				if err != nil {
					t.Fatalf("Get failed: %v", err)
				}
				if !bytes.Equal(got, content) {
					t.Errorf("Content mismatch for %s", size.Name)
				}
			})
		}
	})
}

// An oversized request is answered with an error and the connection closed.
func TestRequestTooLarge(t *testing.T) {
	tc := NewTestContext(t, AllConfigurations()[0], WithMaxRequestSize(64<<10))
	c := tc.Dial()

	raw, err := c.RoundTrip(context.Background(), bytes.Repeat([]byte("A"), 128<<10))
	if err != nil {
		t.Fatalf("Expected an error response, got %v", err)
	}
	if string(raw) != `{"status":"ERROR","data":"request terlalu besar"}` {
		t.Errorf("Unexpected response: %s", raw)
	}

	_, err = c.List(context.Background())
	if err == nil || !(errors.Is(err, io.ErrUnexpectedEOF) || isConnReset(err)) {
		t.Errorf("Expected closed connection, got %v", err)
	}
}
