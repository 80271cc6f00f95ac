package m3u

import "strings"

// EPG header keys in priority order. The two spellings are historical
// aliases for the same concept; when both are present their values are
// comma-joined, primary key first. Matching is case-insensitive for these
// keys only.
var epgHeaderKeys = []string{"url-tvg", "x-tvg-url"}

// parseHeader extracts playlist-scoped attributes from the #EXTM3U header
// line. Unrecognized key/value pairs are retained verbatim in Other, last
// occurrence winning on duplicates. A header with no attributes yields a
// value with all fields empty; the attributes object itself always exists
// when a valid header was found.
func parseHeader(line string) PlaylistAttributes {
	attrs := PlaylistAttributes{Other: make(map[string]string)}

	epg := make(map[string]string, len(epgHeaderKeys))
	rest := strings.TrimSpace(line[len(headerPrefix):])

	for _, p := range scanAttributes(rest) {
		if key, ok := matchEPGKey(p.key); ok {
			epg[key] = p.value
			continue
		}
		switch p.key {
		case "description":
			attrs.Description = p.value
		case "size":
			attrs.Size = p.value
		case "background":
			attrs.Background = p.value
		default:
			attrs.Other[p.key] = p.value
		}
	}

	var urls []string
	for _, key := range epgHeaderKeys {
		if v, ok := epg[key]; ok && v != "" {
			urls = append(urls, v)
		}
	}
	attrs.EPGURL = strings.Join(urls, ",")

	return attrs
}

// matchEPGKey reports whether key is one of the EPG URL header keys,
// case-insensitively, returning its canonical spelling.
func matchEPGKey(key string) (string, bool) {
	for _, k := range epgHeaderKeys {
		if strings.EqualFold(key, k) {
			return k, true
		}
	}
	return "", false
}
