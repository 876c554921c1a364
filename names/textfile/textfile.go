/*
Package textfile reads name lists from plain text.

Every line holds a name, optionally followed by whitespace and a value which
extends to the end of the line:

	% players of the northern realm
	%: realm-north
	Gandalf    wizard, level 30
	Frodo      hobbit
	Sam

Lines starting with '%' are comments. A comment starting with "%:" names the
list; the rest of it becomes the reader's identifier.

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package textfile

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/npillmayer/exthash/names"
)

// Reader streams name/value pairs from text input.
type Reader struct {
	scanner    *bufio.Scanner
	identifier string
	line       int
}

// Load parses a name list and returns a name table holding its entries.
func Load(identifier string, reader io.Reader, opts ...names.Option) (*names.Table, error) {
	return names.Load(identifier, NewReader(reader), opts...)
}

// NewReader creates a reader for text input.
func NewReader(reader io.Reader) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(reader),
	}
}

// Identifier returns the name of the list, if the input carried one.
func (r *Reader) Identifier() string {
	return r.identifier
}

// Line returns the number of lines read so far.
func (r *Reader) Line() int {
	return r.line
}

// Next returns the next name and its value.
// It returns io.EOF when exhausted.
func (r *Reader) Next() (string, []byte, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if strings.HasPrefix(line, "%:") {
			r.identifier = strings.TrimSpace(line[2:])
			continue
		}
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		name, value := splitLine(line)
		return name, []byte(value), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", nil, err
	}
	return "", nil, io.EOF
}

func splitLine(line string) (name, value string) {
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimLeftFunc(line[i:], unicode.IsSpace)
}
