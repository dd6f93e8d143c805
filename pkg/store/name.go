package store

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest accepted file name, in bytes.
const MaxNameLength = 255

// TempPrefix starts the names of in-progress writes. Since it begins with a
// dot, such names are never valid file names and never listed.
const TempPrefix = ".xfer-"

// ValidateName checks that name denotes a single entry directly under the
// store root.
//
// Rejected:
//   - the empty name
//   - names containing '/' or '\'
//   - names starting with '.' (covers ".", ".." and hidden files)
//   - NUL, other control characters and DEL
//   - invalid UTF-8
//   - names longer than MaxNameLength bytes
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidName, len(name), MaxNameLength)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c == 0x7F {
			return fmt.Errorf("%w: control character 0x%02x", ErrInvalidName, c)
		}
	}
	return nil
}

// Listable reports whether a name found in a backend should appear in List.
func Listable(name string) bool {
	return ValidateName(name) == nil
}
