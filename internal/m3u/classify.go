package m3u

import "strings"

// lineClass is the tag assigned to a trimmed line before any stateful logic
// runs. Pairing state transitions only on classInfo and classLocator; every
// directive class is guaranteed to leave pending metadata untouched.
type lineClass int

const (
	classBlank lineClass = iota
	classHeader
	classInfo
	classDirective
	classSession
	classLocator
	classPlayerOption
)

const (
	headerPrefix  = "#EXTM3U"
	infoPrefix    = "#EXTINF"
	sessionPrefix = "#EXT-X-SESSION-DATA"
	vlcOptPrefix  = "#EXTVLCOPT"
)

// infoTypoPrefix tolerates the one well-known transposition typo of #EXTINF
// seen in provider-generated playlists.
const infoTypoPrefix = "#EXTNIF"

// ignorablePrefixes are directives that are dropped outright: group tags,
// the extended HLS tag family, encoding and playlist tags, byte ranges.
var ignorablePrefixes = []string{
	"#EXTGRP",
	"#EXT-X-",
	"#EXTENC",
	"#PLAYLIST",
	"#EXTBYT",
}

// classify maps one trimmed line to its class. first reports whether this is
// the very first non-empty line of the document; only that position can hold
// the header.
func classify(line string, first bool) lineClass {
	if line == "" {
		return classBlank
	}
	if first && hasPrefixFold(line, headerPrefix) {
		return classHeader
	}
	if strings.HasPrefix(line, infoPrefix) || strings.HasPrefix(line, infoTypoPrefix) {
		return classInfo
	}
	if strings.HasPrefix(line, vlcOptPrefix) {
		return classPlayerOption
	}
	if strings.HasPrefix(line, sessionPrefix) {
		return classSession
	}
	for _, p := range ignorablePrefixes {
		if strings.HasPrefix(line, p) {
			return classDirective
		}
	}
	if !strings.HasPrefix(line, "#") {
		return classLocator
	}
	return classDirective
}

// hasPrefixFold is a case-insensitive strings.HasPrefix.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
