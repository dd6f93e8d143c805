package xfer

import "strings"

// Command identifies a protocol operation.
type Command uint8

const (
	CommandUnknown Command = iota
	CommandList
	CommandGet
	CommandUpload
	CommandDelete
)

var commandNames = map[string]Command{
	"list":   CommandList,
	"get":    CommandGet,
	"upload": CommandUpload,
	"delete": CommandDelete,
}

// LookupCommand maps a command word to its Command, ignoring case.
func LookupCommand(name string) (Command, bool) {
	c, ok := commandNames[strings.ToLower(name)]
	return c, ok
}

func (c Command) String() string {
	switch c {
	case CommandList:
		return "LIST"
	case CommandGet:
		return "GET"
	case CommandUpload:
		return "UPLOAD"
	case CommandDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}
