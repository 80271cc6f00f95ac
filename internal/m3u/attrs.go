package m3u

import (
	"regexp"
	"strconv"
	"strings"
)

// fallbackName is used when an #EXTINF line carries no title comma.
const fallbackName = "Unknown"

// seriesMarkerRe matches "S01 E02" style season/episode markers inside a
// display name, tolerating case and whitespace between the two parts.
var seriesMarkerRe = regexp.MustCompile(`(?i)\bS(\d{1,4})\s*E(\d{1,4})\b`)

// attrPair is one raw key/value token from an attribute scan.
type attrPair struct {
	key   string
	value string
}

// scanAttributes tokenizes key=value pairs in a single left-to-right pass.
// Values may be double-quoted, single-quoted, or bare (terminated by
// whitespace or a comma); whitespace around '=' is tolerated. Keys are
// returned with their original spelling.
func scanAttributes(s string) []attrPair {
	var pairs []attrPair
	i, n := 0, len(s)
	for i < n {
		for i < n && !isKeyByte(s[i]) {
			i++
		}
		start := i
		for i < n && isKeyByte(s[i]) {
			i++
		}
		if start == i {
			break
		}
		key := s[start:i]

		j := i
		for j < n && (s[j] == ' ' || s[j] == '\t') {
			j++
		}
		if j >= n || s[j] != '=' {
			continue // bare token, not an attribute
		}
		j++
		for j < n && (s[j] == ' ' || s[j] == '\t') {
			j++
		}

		var value string
		if j < n && (s[j] == '"' || s[j] == '\'') {
			quote := s[j]
			j++
			k := j
			for k < n && s[k] != quote {
				k++
			}
			value = s[j:k]
			if k < n {
				k++ // closing quote
			}
			i = k
		} else {
			k := j
			for k < n && s[k] != ' ' && s[k] != '\t' && s[k] != ',' {
				k++
			}
			value = s[j:k]
			i = k
		}
		pairs = append(pairs, attrPair{key: key, value: value})
	}
	return pairs
}

func isKeyByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '-' || b == '_' || b == '.'
}

// lastTopLevelComma returns the index of the last comma outside quoted
// values, or -1. The display name is everything after it. Both quote styles
// scanAttributes accepts shield commas, but a single quote only opens a
// value after '='; apostrophes inside display names stay plain text.
func lastTopLevelComma(s string) int {
	last := -1
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"':
			quote = c
		case c == '\'' && followsEquals(s, i):
			quote = c
		case c == ',':
			last = i
		}
	}
	return last
}

// followsEquals reports whether s[i] is preceded by '=', ignoring spaces.
func followsEquals(s string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch s[j] {
		case ' ', '\t':
		case '=':
			return true
		default:
			return false
		}
	}
	return false
}

// extractAttributes parses one #EXTINF line into typed attributes and a
// display name. nameMissing reports that the line had no title comma and the
// name fell back to the literal "Unknown".
func extractAttributes(line string, stripMarkers bool) (attrs EntryAttributes, name string, nameMissing bool) {
	attrPart := line
	if idx := lastTopLevelComma(line); idx >= 0 {
		name = strings.TrimSpace(line[idx+1:])
		attrPart = line[:idx]
	} else {
		name = fallbackName
		nameMissing = true
	}

	for _, p := range scanAttributes(attrPart) {
		switch p.key {
		case "tvg-id":
			attrs.ID = p.value
		case "tvg-name":
			attrs.Name = p.value
		case "tvg-country":
			attrs.Country = p.value
		case "tvg-language":
			attrs.Language = p.value
		case "tvg-logo":
			attrs.Logo = p.value
		case "tvg-chno":
			if v, err := strconv.Atoi(strings.TrimSpace(p.value)); err == nil {
				attrs.ChannelNumber = &v
			}
		case "timeshift":
			attrs.Shift = p.value
		case "group-title":
			attrs.GroupTitle = p.value
		case "tvg-url":
			attrs.EPGURL = p.value
		case "tvg-shift":
			attrs.EPGShift = p.value
		case "aspect-ratio":
			attrs.AspectRatio = p.value
		case "audio-track":
			attrs.AudioTrack = p.value
		case "subtitle-track":
			attrs.SubtitleTrack = p.value
		default:
			if attrs.Other == nil {
				attrs.Other = make(map[string]string)
			}
			attrs.Other[p.key] = p.value
		}
	}

	if m := seriesMarkerRe.FindStringSubmatchIndex(name); m != nil {
		if season, err := strconv.Atoi(name[m[2]:m[3]]); err == nil {
			attrs.Season = &season
		}
		if episode, err := strconv.Atoi(name[m[4]:m[5]]); err == nil {
			attrs.Episode = &episode
		}
		if stripMarkers {
			stripped := name[:m[0]] + name[m[1]:]
			name = strings.Join(strings.Fields(stripped), " ")
		}
	}

	return attrs, name, nameMissing
}

// extractVLCOpt pulls one http-* option from an #EXTVLCOPT line into h.
// Unknown options are ignored.
func extractVLCOpt(line string, h *HTTPHeaders) {
	rest := strings.TrimPrefix(line, vlcOptPrefix)
	rest = strings.TrimPrefix(rest, ":")
	key, value, ok := strings.Cut(rest, "=")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "http-origin":
		h.Origin = value
	case "http-referrer":
		h.Referrer = value
	case "http-user-agent":
		h.UserAgent = value
	}
}
