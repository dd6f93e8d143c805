package badger

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Key layout
//
//	Prefix    Key Format                 Value
//	file/     file/<name>                manifest (JSON)
//	chunk/    chunk/<uuid>/<index:08d>   up to chunkSize bytes of content
//
// Every write stores its content under a fresh UUID and then swaps the
// manifest, so a reader always sees one complete version of a file.
const (
	keyPrefix   = "file/"
	chunkPrefix = "chunk/"
)

// chunkSize stays below Badger's value threshold, which in-memory mode
// enforces as the largest value it accepts.
const chunkSize = 512 << 10

func fileKey(name string) []byte {
	return []byte(keyPrefix + name)
}

func chunkKeyPrefix(id uuid.UUID) []byte {
	return []byte(chunkPrefix + id.String() + "/")
}

func chunkKey(id uuid.UUID, index int) []byte {
	return fmt.Appendf(chunkKeyPrefix(id), "%08d", index)
}

// manifest describes the stored version of a file.
type manifest struct {
	ID     uuid.UUID `json:"id"`
	Size   int64     `json:"size"`
	Chunks int       `json:"chunks"`
}

func encodeManifest(m manifest) ([]byte, error) {
	return json.Marshal(m)
}

func decodeManifest(data []byte) (manifest, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
