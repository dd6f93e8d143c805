package xfer

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the outcome carried by every response.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Messages shared between the connection layer and the dispatcher.
const (
	MsgUnrecognized    = "request tidak dikenali"
	MsgRequestTooLarge = "request terlalu besar"
)

// PayloadKind tells which payload fields of a Response are meaningful.
type PayloadKind uint8

const (
	PayloadMessage PayloadKind = iota
	PayloadFileList
	PayloadFileContent
)

// Response is a protocol reply.
//
// On the wire a response is a single JSON object:
//
//	{"status":"OK","data":["a.txt","b.txt"]}
//	{"status":"OK","data_namafile":"a.txt","data_file":"<base64>"}
//	{"status":"OK","data":"File a.txt berhasil diupload"}
//	{"status":"ERROR","data":"File a.txt tidak ditemukan"}
type Response struct {
	Status Status
	Kind   PayloadKind

	Message  string
	Files    []string
	Filename string
	Content  string
}

// OK builds a successful response carrying a message.
func OK(message string) Response {
	return Response{Status: StatusOK, Kind: PayloadMessage, Message: message}
}

// Fail builds an error response carrying message.
func Fail(message string) Response {
	return Response{Status: StatusError, Kind: PayloadMessage, Message: message}
}

// Errorf builds an error response with a formatted message.
func Errorf(format string, args ...any) Response {
	return Response{Status: StatusError, Kind: PayloadMessage, Message: fmt.Sprintf(format, args...)}
}

// FileList builds a LIST response. A nil slice is sent as an empty array.
func FileList(names []string) Response {
	if names == nil {
		names = []string{}
	}
	return Response{Status: StatusOK, Kind: PayloadFileList, Files: names}
}

// FileContent builds a GET response; content is already base64-encoded.
func FileContent(filename, content string) Response {
	return Response{Status: StatusOK, Kind: PayloadFileContent, Filename: filename, Content: content}
}

// IsOK reports whether the response status is OK.
func (r Response) IsOK() bool {
	return r.Status == StatusOK
}

type listJSON struct {
	Status Status   `json:"status"`
	Data   []string `json:"data"`
}

type contentJSON struct {
	Status   Status `json:"status"`
	Filename string `json:"data_namafile"`
	Content  string `json:"data_file"`
}

type messageJSON struct {
	Status Status `json:"status"`
	Data   string `json:"data"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case PayloadFileList:
		files := r.Files
		if files == nil {
			files = []string{}
		}
		return json.Marshal(listJSON{Status: r.Status, Data: files})
	case PayloadFileContent:
		return json.Marshal(contentJSON{Status: r.Status, Filename: r.Filename, Content: r.Content})
	default:
		return json.Marshal(messageJSON{Status: r.Status, Data: r.Message})
	}
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status   Status          `json:"status"`
		Data     json.RawMessage `json:"data"`
		Filename *string         `json:"data_namafile"`
		Content  *string         `json:"data_file"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Status != StatusOK && raw.Status != StatusError {
		return fmt.Errorf("unknown response status %q", raw.Status)
	}

	*r = Response{Status: raw.Status}

	if raw.Filename != nil {
		r.Kind = PayloadFileContent
		r.Filename = *raw.Filename
		if raw.Content != nil {
			r.Content = *raw.Content
		}
		return nil
	}

	if len(raw.Data) > 0 && raw.Data[0] == '[' {
		r.Kind = PayloadFileList
		return json.Unmarshal(raw.Data, &r.Files)
	}

	r.Kind = PayloadMessage
	if len(raw.Data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(raw.Data, &r.Message)
}

// Encode serializes a response and appends the wire terminator.
func Encode(r Response) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return AppendTerminator(payload), nil
}
