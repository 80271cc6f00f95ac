package m3u

import (
	"net/url"
	"strings"
)

// DegradedScheme tags locators produced by the maximum-resilience fallback.
// Entries carrying it are detectable and countable by callers; they are never
// shaped like a playable URL.
const DegradedScheme = "degraded"

// Locator is the tagged result of locator normalization: either a resolved
// absolute URI or a degraded placeholder carrying the original text.
type Locator struct {
	uri      string // resolved absolute URI, empty when degraded
	original string // original line text, set only when degraded
}

// ResolvedLocator wraps an already-valid absolute URI.
func ResolvedLocator(uri string) Locator { return Locator{uri: uri} }

// DegradedLocator wraps the original text of an unusable locator line.
func DegradedLocator(text string) Locator { return Locator{original: text} }

// IsDegraded reports whether the locator is a degraded placeholder.
func (l Locator) IsDegraded() bool { return l.original != "" }

// Original returns the raw line text of a degraded locator, or "" for a
// resolved one.
func (l Locator) Original() string { return l.original }

// String returns the resolved URI, or the degraded-scheme form
// "degraded:<escaped original>" for placeholders.
func (l Locator) String() string {
	if l.IsDegraded() {
		return DegradedScheme + ":" + url.PathEscape(l.original)
	}
	return l.uri
}

// MarshalText implements encoding.TextMarshaler so locators serialize as
// their string form.
func (l Locator) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText restores a locator from its string form.
func (l *Locator) UnmarshalText(data []byte) error {
	s := string(data)
	if rest, ok := strings.CutPrefix(s, DegradedScheme+":"); ok {
		original, err := url.PathUnescape(rest)
		if err != nil {
			return err
		}
		*l = DegradedLocator(original)
		return nil
	}
	*l = ResolvedLocator(s)
	return nil
}

// strictSchemes is the scheme allowlist applied in strict mode.
var strictSchemes = map[string]bool{
	"http": true, "https": true,
	"rtmp": true, "rtmps": true,
	"rtsp": true, "rtsps": true,
	"mms": true, "mmsh": true,
}

// mediaExtensions are the stream/file suffixes accepted in strict mode when
// the path carries no playlist marker.
var mediaExtensions = []string{
	".ts", ".m2ts", ".mp4", ".m4v", ".mkv", ".avi", ".mov", ".flv",
	".wmv", ".webm", ".mpd", ".mp3", ".aac", ".m4a", ".ogg", ".flac", ".wav",
}

var controlStripper = strings.NewReplacer("\r", "", "\n", "", "\t", "")

// normalizeLocator turns a raw locator-candidate line into a valid absolute
// URI, applying the provider conventions the wild uses: pipe-suffix
// truncation, space escaping, scheme completion. ok is false when the line
// cannot produce a usable locator under the given strictness; the degraded
// fallback is decided by the caller.
func normalizeLocator(raw string, strict bool) (uri string, ok bool) {
	s := controlStripper.Replace(raw)
	if idx := strings.IndexByte(s, '|'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	s = strings.ReplaceAll(s, " ", "%20")

	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case !strings.Contains(s, "://") && !strings.HasPrefix(s, "/"):
		s = "http://" + s
	}
	// A root-relative path with no base stays as-is and fails validation.

	if !validLocator(s, strict) {
		// Best-effort retry: percent-encode the remaining unsafe bytes once.
		s = encodeUnsafe(s)
		if !validLocator(s, strict) {
			return "", false
		}
	}
	return s, true
}

// validLocator checks scheme and host presence (basic mode) plus the scheme
// allowlist and media extension (strict mode).
func validLocator(s string, strict bool) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	if strings.Contains(s, "://") && u.Host == "" {
		return false
	}
	if !strict {
		return true
	}
	if !strictSchemes[u.Scheme] {
		return false
	}
	path := strings.ToLower(u.Path)
	if strings.Contains(path, ".m3u8") || strings.Contains(path, ".m3u") {
		return true
	}
	for _, ext := range mediaExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// encodeUnsafe percent-encodes bytes outside the RFC 3986 unreserved and
// reserved sets. '%' itself is re-encoded, which repairs the malformed
// half-escapes providers emit; valid escapes only reach this path on URLs
// that already failed validation.
func encodeUnsafe(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURLByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(url.QueryEscape(string(c)))
	}
	return b.String()
}

func isURLByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '.', '_', '~', ':', '/', '?', '#', '[', ']', '@',
		'!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=':
		return true
	}
	return false
}
