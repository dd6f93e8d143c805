package xfer

import (
	"errors"
	"fmt"

	"github.com/kballard/go-shellquote"
)

var (
	// ErrEmptyRequest is returned for a request containing no tokens.
	ErrEmptyRequest = errors.New("empty request")

	// ErrUnrecognized is returned for a request whose first token is not a
	// known command or whose quoting cannot be tokenized.
	ErrUnrecognized = errors.New("unrecognized request")
)

// Request is a parsed protocol request.
type Request struct {
	Command Command
	Params  []string
}

// Parse tokenizes a request line shell-style and resolves its command word.
//
// Tokens are separated by whitespace; single and double quotes group words
// and backslash escapes the next character. The command word is matched
// case-insensitively. Parameters are returned verbatim.
func Parse(line string) (Request, error) {
	tokens, err := shellquote.Split(line)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	if len(tokens) == 0 {
		return Request{}, ErrEmptyRequest
	}

	cmd, ok := LookupCommand(tokens[0])
	if !ok {
		return Request{}, fmt.Errorf("%w: command %q", ErrUnrecognized, tokens[0])
	}

	return Request{Command: cmd, Params: tokens[1:]}, nil
}

// Format renders a request line that Parse turns back into the same
// command and parameters.
func Format(cmd Command, params ...string) string {
	words := make([]string, 0, len(params)+1)
	words = append(words, cmd.String())
	words = append(words, params...)
	return shellquote.Join(words...)
}
