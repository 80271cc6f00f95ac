package m3u

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode converts raw playlist bytes into text the parser consumes: UTF-16
// documents (detected by BOM) are transcoded, and a leading UTF-8 BOM is
// stripped.
func Decode(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), nil
	}
}

// normalizeNewlines unifies CRLF and bare CR line endings to LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// SniffFormat cheaply classifies a decoded document by content, without
// parsing it.
func SniffFormat(text string) FormatHint {
	first := firstNonBlankLine(text)
	switch {
	case hasPrefixFold(first, headerPrefix):
		if strings.Contains(text, "#EXT-X-") {
			return FormatM3U8
		}
		return FormatM3U
	case strings.EqualFold(first, "[playlist]"):
		return FormatPLS
	default:
		return FormatUnknown
	}
}

// IsValidHeader reports whether the document starts with the #EXTM3U header,
// usable as a cheap validity check without a full parse.
func IsValidHeader(text string) bool {
	return hasPrefixFold(firstNonBlankLine(text), headerPrefix)
}

func firstNonBlankLine(text string) string {
	for line := range strings.Lines(normalizeNewlines(text)) {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// splitDocument normalizes line endings, verifies the header, and separates
// it from the entry stream. offset is the 1-based document line number of
// the first entry-stream line, so diagnostics keep document-relative
// numbering. ok is false when no header is present.
func splitDocument(text string) (header string, lines []string, offset int, ok bool) {
	all := strings.Split(normalizeNewlines(text), "\n")
	for i, raw := range all {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if !hasPrefixFold(t, headerPrefix) {
			return "", nil, 0, false
		}
		return t, all[i+1:], i + 2, true
	}
	return "", nil, 0, false
}
