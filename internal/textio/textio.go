// Package textio normalises text inputs to plain UTF-8.
package textio

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewReader strips a leading byte order mark from r. A UTF-16 BOM switches
// decoding to UTF-16 so the returned reader always yields UTF-8.
func NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
