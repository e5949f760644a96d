package cookies

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is returned by Encode and Decode for text that has no
// percent-encoded form or is not valid percent-encoding.
var ErrMalformed = errors.New("cookies: malformed text")

const upperhex = "0123456789ABCDEF"

// unreserved reports whether b passes through Encode unchanged.
func unreserved(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	switch b {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// nameByte reports whether b passes through EncodeName unchanged: an RFC
// 7230 token character other than '%'.
func nameByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	}
	switch b {
	case '!', '#', '$', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// Encode percent-encodes every byte of s outside the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ). s must be valid UTF-8.
func Encode(s string) (string, error) {
	return encode(s, unreserved)
}

// EncodeName percent-encodes s for use as a cookie name. Every byte that is
// not a token character is escaped, so the result is always a valid name.
func EncodeName(s string) (string, error) {
	return encode(s, nameByte)
}

func encode(s string, keep func(byte) bool) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrMalformed)
	}

	n := 0
	for i := 0; i < len(s); i++ {
		if !keep(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keep(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String(), nil
}

// Decode reverses Encode. It accepts any percent-encoded text whose decoded
// bytes are valid UTF-8; '+' is kept as is.
func Decode(s string) (string, error) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrMalformed)
	}
	return out, nil
}
