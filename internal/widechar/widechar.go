// Package widechar converts between UTF-8 strings and the 16-bit code units
// used for alphabets and in-progress words.
//
// Characters outside the Basic Multilingual Plane become surrogate pairs, so
// each half occupies its own label. Two such characters that share a high
// surrogate, like "😀😁", therefore cannot both be in one alphabet: the
// second repeats the first one's leading unit and the alphabet is rejected
// as a duplicate. Unpaired surrogates decode to U+FFFD.
package widechar

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Encode widens a UTF-8 string into 16-bit code units.
// Invalid UTF-8 bytes become U+FFFD.
func Encode(s string) []uint16 {
	if s == "" {
		return nil
	}
	return utf16.Encode([]rune(s))
}

// Decode narrows 16-bit code units back into a UTF-8 string.
func Decode(units []uint16) string {
	if len(units) == 0 {
		return ""
	}
	buf := make([]byte, 0, len(units)+len(units)/2)
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) {
			if i+1 < len(units) {
				if pair := utf16.DecodeRune(r, rune(units[i+1])); pair != utf8.RuneError {
					buf = utf8.AppendRune(buf, pair)
					i++
					continue
				}
			}
			r = utf8.RuneError
		}
		buf = utf8.AppendRune(buf, r)
	}
	return string(buf)
}
