// Package dispatcher executes parsed transfer requests against a file store.
//
// The dispatcher is the only place where store errors become protocol
// responses: every expected failure (missing parameter, invalid name,
// missing file, malformed base64, store I/O error) is answered with an
// ERROR response and never terminates the connection.
package dispatcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittoxfer/internal/logger"
	"github.com/marmos91/dittoxfer/internal/protocol/xfer"
	"github.com/marmos91/dittoxfer/pkg/metrics"
	"github.com/marmos91/dittoxfer/pkg/store"
)

// Result messages sent back to clients.
const (
	msgParamsIncomplete = "Parameter tidak lengkap"
	msgEmptyName        = "Nama file kosong"
	msgNameRequired     = "Parameter nama file diperlukan"
	msgInvalidName      = "Nama file tidak valid"
	msgInvalidBase64    = "Isi file bukan base64 yang valid"
	msgUploaded         = "File %s berhasil diupload"
	msgDeleted          = "File %s berhasil dihapus"
	msgNotFound         = "File %s tidak ditemukan"
	msgStoreFailure     = "Gagal mengakses penyimpanan: %v"
)

// Dispatcher maps commands to file store operations.
//
// A Dispatcher holds no per-request state and is safe for concurrent use by
// any number of connections; synchronization is the store's concern.
type Dispatcher struct {
	store   store.FileStore
	metrics metrics.XferMetrics
}

// New creates a dispatcher over fs. A nil m disables metrics.
func New(fs store.FileStore, m metrics.XferMetrics) *Dispatcher {
	if fs == nil {
		panic("dispatcher: nil file store")
	}
	if m == nil {
		m = metrics.NewNoopXferMetrics()
	}
	return &Dispatcher{store: fs, metrics: m}
}

// Process parses a raw request, executes it and returns the encoded
// response including the wire terminator.
func (d *Dispatcher) Process(ctx context.Context, raw []byte) ([]byte, error) {
	start := time.Now()

	cmd := xfer.CommandUnknown
	var resp xfer.Response

	req, err := xfer.Parse(string(raw))
	if err != nil {
		logger.Debug("Unrecognized request (%d bytes): %v", len(raw), err)
		resp = xfer.Fail(xfer.MsgUnrecognized)
	} else {
		cmd = req.Command
		resp = d.Dispatch(ctx, req)
	}

	out, err := xfer.Encode(resp)
	if err != nil {
		return nil, err
	}

	d.metrics.RecordRequest(cmd.String(), string(resp.Status), time.Since(start))
	return out, nil
}

// Dispatch executes a parsed request.
func (d *Dispatcher) Dispatch(ctx context.Context, req xfer.Request) xfer.Response {
	switch req.Command {
	case xfer.CommandList:
		return d.list(ctx)
	case xfer.CommandGet:
		return d.get(ctx, req.Params)
	case xfer.CommandUpload:
		return d.upload(ctx, req.Params)
	case xfer.CommandDelete:
		return d.delete(ctx, req.Params)
	default:
		return xfer.Fail(xfer.MsgUnrecognized)
	}
}

func (d *Dispatcher) list(ctx context.Context) xfer.Response {
	names, err := d.store.List(ctx)
	if err != nil {
		logger.Warn("LIST failed: %v", err)
		return xfer.Errorf(msgStoreFailure, err)
	}
	logger.Debug("LIST: %d file(s)", len(names))
	return xfer.FileList(names)
}

func (d *Dispatcher) get(ctx context.Context, params []string) xfer.Response {
	if len(params) < 1 {
		return xfer.Fail(msgNameRequired)
	}
	name := params[0]
	if name == "" {
		return xfer.Fail(msgEmptyName)
	}

	data, err := d.store.Read(ctx, name)
	if err != nil {
		return d.storeError("GET", name, err)
	}

	d.metrics.RecordBytes("out", int64(len(data)))
	logger.Debug("GET %s: %d bytes", name, len(data))
	return xfer.FileContent(name, base64.StdEncoding.EncodeToString(data))
}

func (d *Dispatcher) upload(ctx context.Context, params []string) xfer.Response {
	if len(params) < 2 {
		return xfer.Fail(msgParamsIncomplete)
	}
	name, encoded := params[0], params[1]
	if name == "" {
		return xfer.Fail(msgEmptyName)
	}
	if err := store.ValidateName(name); err != nil {
		return xfer.Fail(msgInvalidName)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Debug("UPLOAD %s: bad base64: %v", name, err)
		return xfer.Fail(msgInvalidBase64)
	}

	if err := d.store.Write(ctx, name, data); err != nil {
		return d.storeError("UPLOAD", name, err)
	}

	d.metrics.RecordBytes("in", int64(len(data)))
	logger.Debug("UPLOAD %s: %d bytes", name, len(data))
	return xfer.OK(fmt.Sprintf(msgUploaded, name))
}

func (d *Dispatcher) delete(ctx context.Context, params []string) xfer.Response {
	if len(params) < 1 {
		return xfer.Fail(msgNameRequired)
	}
	name := params[0]
	if name == "" {
		return xfer.Fail(msgEmptyName)
	}

	if err := d.store.Delete(ctx, name); err != nil {
		return d.storeError("DELETE", name, err)
	}

	logger.Debug("DELETE %s", name)
	return xfer.OK(fmt.Sprintf(msgDeleted, name))
}

// storeError converts a store failure into an ERROR response.
func (d *Dispatcher) storeError(op, name string, err error) xfer.Response {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		logger.Debug("%s rejected name %q: %v", op, name, err)
		return xfer.Fail(msgInvalidName)
	case errors.Is(err, store.ErrNotFound):
		return xfer.Errorf(msgNotFound, name)
	default:
		logger.Warn("%s %s failed: %v", op, name, err)
		return xfer.Errorf(msgStoreFailure, err)
	}
}
