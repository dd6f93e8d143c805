package ipc

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessage(t *testing.T) {
	var buf bytes.Buffer

	in := []*Message{
		{Kind: KindInit, Body: []byte(`{"type":"memory"}`)},
		{Kind: KindRequest, Seq: 7, Body: []byte("LIST")},
		{Kind: KindResponse, Seq: 7, Body: []byte{}},
	}
	for _, m := range in {
		require.NoError(t, WriteMessage(&buf, m))
	}

	for _, want := range in {
		got, err := ReadMessage(&buf, 0)
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Seq, got.Seq)
		assert.Equal(t, want.Body, got.Body)
		assert.NotNil(t, got.Body)
	}

	_, err := ReadMessage(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFragmentedRecord(t *testing.T) {
	var buf bytes.Buffer
	body := bytes.Repeat([]byte("0123456789"), 100)

	require.NoError(t, writeMessage(&buf, &Message{Kind: KindResponse, Seq: 1, Body: body}, 64))

	// Header word of the first fragment: 64 bytes, last bit clear.
	first := binary.BigEndian.Uint32(buf.Bytes()[:4])
	assert.Equal(t, uint32(64), first)

	got, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, body, got.Body)
}

func TestReadMessage_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &Message{Kind: KindRequest, Body: make([]byte, 1024)}))

	_, err := ReadMessage(&buf, 512)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadMessage_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &Message{Kind: KindRequest, Body: []byte("GET a.txt")}))

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	_, err := ReadMessage(truncated, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "request", KindRequest.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
