// Package charset converts remote command output to UTF-8.
//
// Shells on Windows hosts commonly answer in a legacy code page (GBK,
// Shift_JIS, windows-1252). Each shell record names its output encoding;
// "auto" runs chardet over the bytes and trusts the best guess.
package charset

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const (
	// Auto detects the encoding per reply.
	Auto = "auto"
	// UTF8 is the default and passes bytes through untouched.
	UTF8 = "utf-8"
)

// Validate reports whether name is "auto" or an encoding the converter
// knows about. The empty string means UTF-8.
func Validate(name string) error {
	switch normalize(name) {
	case "", UTF8, Auto:
		return nil
	}
	if enc, _ := charset.Lookup(name); enc == nil {
		return fmt.Errorf("unknown encoding %q", name)
	}
	return nil
}

// Canonical returns the normalized name stored on records.
func Canonical(name string) string {
	n := normalize(name)
	switch n {
	case "", "utf8", UTF8:
		return UTF8
	case Auto:
		return Auto
	}
	if _, canonical := charset.Lookup(n); canonical != "" {
		return canonical
	}
	return n
}

// Detect guesses the encoding of data. Valid UTF-8 is reported as such
// without consulting the detector.
func Detect(data []byte) string {
	if utf8.Valid(data) {
		return UTF8
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return UTF8
	}
	return strings.ToLower(result.Charset)
}

// ToUTF8 decodes data from the named encoding. Bytes that cannot be decoded
// are returned unchanged rather than failing the command.
func ToUTF8(data []byte, name string) []byte {
	name = Canonical(name)
	if name == Auto {
		name = Detect(data)
	}
	if name == UTF8 || len(data) == 0 {
		return data
	}
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return data
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

// FromUTF8 encodes a command into the named encoding before it is sent.
// "auto" and UTF-8 pass through.
func FromUTF8(data []byte, name string) []byte {
	name = Canonical(name)
	if name == Auto || name == UTF8 {
		return data
	}
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return data
	}
	out, err := enc.NewEncoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
