// Package textdec converts raw protocol strings of unknown encoding into UTF-8 text.
//
// Game servers send hostnames, player names and rules in whatever single byte code page
// the server operator used, most often Windows-1251 or Windows-1252. Detection chains
// three checks: UTF-8 validity, n-gram statistics from chardet, and a script
// consistency check on the Cyrillic reading. Decoding never fails: undecodable input
// falls back to a lossy UTF-8 conversion.
package textdec

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Encoding names reported by Decode.
const (
	ASCII       = "ascii"
	UTF8        = "utf-8"
	Windows1251 = "windows-1251"
	Windows1252 = "windows-1252"
)

// cyrillicShare is the minimum share of letters in the 0xC0-0xFF range (among all
// letters) above which a buffer the n-gram statistics cannot place is treated as
// Windows-1251.
const cyrillicShare = 0.5

// Decoder is the text decoding contract consumed by the query codec.
type Decoder interface {
	// Decode returns the text and the name of the detected encoding. It never fails.
	Decode(b []byte) (text string, encodingName string)
}

// Heuristic is the default Decoder.
type Heuristic struct {
	// Fallback is the code page used for non UTF-8 input that does not look Cyrillic.
	Fallback string
}

// New returns a heuristic decoder with Windows-1252 as the fallback code page.
func New() *Heuristic {
	return &Heuristic{Fallback: Windows1252}
}

// Decode implements Decoder.
func (h *Heuristic) Decode(b []byte) (string, string) {
	name := h.Detect(b)

	switch name {
	case ASCII, UTF8:
		return string(b), name
	}

	enc := lookup(name)
	if enc == nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), name
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), name
	}

	return string(out), name
}

// Detect returns the most likely encoding name of b.
func (h *Heuristic) Detect(b []byte) string {
	if isASCII(b) {
		return ASCII
	}
	if utf8.Valid(b) {
		return UTF8
	}

	sample := highByteWords(b)

	cyrillic, latin := ngramVotes(sample)
	if mixesScripts(b, Windows1251) {
		cyrillic = -1
	}

	switch {
	case cyrillic > latin:
		return Windows1251
	case latin > cyrillic && latin > 0:
		return Windows1252
	case cyrillic >= 0 && highLetterShare(sample) >= cyrillicShare:
		return Windows1251
	}

	if h.Fallback == "" {
		return Windows1252
	}

	return h.Fallback
}

// cyrillicCharsets are decoded as Windows-1251. Short Windows-1251 strings are
// regularly reported as one of the other Cyrillic code pages.
var cyrillicCharsets = map[string]struct{}{
	"windows-1251":   {},
	"KOI8-R":         {},
	"ISO-8859-5":     {},
	"IBM866":         {},
	"x-mac-cyrillic": {},
}

var latinCharsets = map[string]struct{}{
	"ISO-8859-1":   {},
	"windows-1252": {},
}

var detector = chardet.NewTextDetector()

// ngramVotes returns the best chardet confidence for the Cyrillic and the Latin
// code pages. Other charsets are ignored.
func ngramVotes(b []byte) (cyrillic, latin int) {
	results, err := detector.DetectAll(b)
	if err != nil {
		return 0, 0
	}

	for _, r := range results {
		if _, ok := cyrillicCharsets[r.Charset]; ok {
			cyrillic = max(cyrillic, r.Confidence)
		}
		if _, ok := latinCharsets[r.Charset]; ok {
			latin = max(latin, r.Confidence)
		}
	}

	return cyrillic, latin
}

// mixesScripts reports whether decoding b as name yields a word containing both
// Latin and Cyrillic letters.
func mixesScripts(b []byte, name string) bool {
	enc := lookup(name)
	if enc == nil {
		return false
	}

	text, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return false
	}

	words := strings.FieldsFunc(string(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		var lat, cyr bool
		for _, r := range w {
			switch {
			case unicode.Is(unicode.Latin, r):
				lat = true
			case unicode.Is(unicode.Cyrillic, r):
				cyr = true
			}
		}
		if lat && cyr {
			return true
		}
	}

	return false
}

// highByteWords keeps the words of b that contain non-ASCII bytes, separated by
// spaces. ASCII tags such as "[RU]" or "RP" would otherwise outweigh a short
// national word in the n-gram statistics.
func highByteWords(b []byte) []byte {
	out := make([]byte, 0, len(b))

	for start := 0; start < len(b); {
		end := start
		high := false
		for end < len(b) && !isASCIISeparator(b[end]) {
			if b[end] >= utf8.RuneSelf {
				high = true
			}
			end++
		}

		if high {
			if len(out) > 0 {
				out = append(out, ' ')
			}
			out = append(out, b[start:end]...)
		}

		start = end + 1
	}

	return out
}

func isASCIISeparator(c byte) bool {
	return c < utf8.RuneSelf && !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z')
}

// highLetterShare is the share of bytes in the 0xC0-0xFF range among letters.
func highLetterShare(b []byte) float64 {
	var letters, high int
	for _, c := range b {
		switch {
		case c >= 0xC0:
			high++
			letters++
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
			letters++
		}
	}

	if letters == 0 {
		return 0
	}

	return float64(high) / float64(letters)
}

func lookup(name string) encoding.Encoding {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}

	return enc
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}

	return true
}
