// Package videoid resolves user-supplied video references into canonical
// YouTube video ids.
package videoid

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// IdLength is the length of a canonical YouTube video id in code points.
const IdLength = 11

var ErrEmptyReference = errors.New("empty video reference")

// refPattern matches the URL shapes a video reference may arrive in:
// watch?v=ID, embed/ID, youtu.be/ID, v/ID, u/<letter>/ID and trailing
// &v=ID forms. The second group captures the id candidate.
var refPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// Resolve extracts a canonical video id from input. If input matches a
// recognized URL shape and the captured candidate is exactly IdLength
// code points, the candidate is returned. Otherwise input is returned
// unchanged on the assumption it is already a bare id. Callers that
// require a canonical id must check Valid on the result.
func Resolve(input string) (string, error) {
	if input == "" {
		return "", ErrEmptyReference
	}

	m := refPattern.FindStringSubmatch(input)
	if m != nil && utf8.RuneCountInString(m[2]) == IdLength {
		return m[2], nil
	}

	return input, nil
}

// Valid reports whether id has the canonical video id length.
func Valid(id string) bool {
	return utf8.RuneCountInString(id) == IdLength
}
