// Package m3u parses M3U/M3U8 playlists into an ordered list of entries.
//
// The parser is built around an explicit line classification step followed by
// a pairing state machine: metadata directives (#EXTINF) are bound to the
// nearest following locator line, and unrelated directive lines can never
// reset or corrupt that pairing. Malformed lines degrade into diagnostics
// instead of discarding the rest of the document.
package m3u

import (
	"net/url"
	"strings"
)

// MediaKind is the coarse media category derived from the locator path.
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindMovie
	KindSeries
	KindLive
)

// String returns the lowercase name of the kind.
func (k MediaKind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindSeries:
		return "series"
	case KindLive:
		return "live"
	default:
		return "unknown"
	}
}

// FormatHint is a cheap content-sniffing result for a playlist document.
type FormatHint int

const (
	FormatUnknown FormatHint = iota
	FormatM3U
	FormatM3U8
	FormatPLS
)

// String returns the conventional name of the format.
func (f FormatHint) String() string {
	switch f {
	case FormatM3U:
		return "m3u"
	case FormatM3U8:
		return "m3u8"
	case FormatPLS:
		return "pls"
	default:
		return "unknown"
	}
}

// EntryAttributes holds the well-known EXTINF attributes. String fields are
// empty when the attribute was absent; pointer fields are nil when absent.
// Unrecognized key/value pairs are retained verbatim in Other.
type EntryAttributes struct {
	ID            string            `json:"id,omitempty"`             // tvg-id
	Name          string            `json:"name,omitempty"`           // tvg-name
	Country       string            `json:"country,omitempty"`        // tvg-country
	Language      string            `json:"language,omitempty"`       // tvg-language
	Logo          string            `json:"logo,omitempty"`           // tvg-logo
	ChannelNumber *int              `json:"channel_number,omitempty"` // tvg-chno
	Shift         string            `json:"shift,omitempty"`          // timeshift
	GroupTitle    string            `json:"group_title,omitempty"`    // group-title
	Season        *int              `json:"season,omitempty"`
	Episode       *int              `json:"episode,omitempty"`
	EPGURL        string            `json:"epg_url,omitempty"`        // tvg-url
	EPGShift      string            `json:"epg_shift,omitempty"`      // tvg-shift
	AspectRatio   string            `json:"aspect_ratio,omitempty"`   // aspect-ratio
	AudioTrack    string            `json:"audio_track,omitempty"`    // audio-track
	SubtitleTrack string            `json:"subtitle_track,omitempty"` // subtitle-track
	Other         map[string]string `json:"other,omitempty"`
}

// HTTPHeaders carries per-entry HTTP headers declared via #EXTVLCOPT lines.
type HTTPHeaders struct {
	Origin    string `json:"origin,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Entry is one paired (metadata, locator) unit of the playlist.
type Entry struct {
	Duration int             `json:"duration"` // seconds; -1 = unknown/live
	Attrs    EntryAttributes `json:"attrs"`
	Kind     MediaKind       `json:"kind"`
	Name     string          `json:"name"`
	Locator  Locator         `json:"locator"`
	Headers  *HTTPHeaders    `json:"headers,omitempty"`
}

// PlaylistAttributes holds playlist-scoped fields from the #EXTM3U header
// line. It is always present on a Playlist with a valid header, even when
// every field is empty.
type PlaylistAttributes struct {
	EPGURL      string            `json:"epg_url,omitempty"`
	Description string            `json:"description,omitempty"`
	Size        string            `json:"size,omitempty"`
	Background  string            `json:"background,omitempty"`
	Other       map[string]string `json:"other,omitempty"`
}

// Playlist is the immutable result of a parse: entries in source order plus
// header attributes.
type Playlist struct {
	Attributes PlaylistAttributes `json:"attributes"`
	Entries    []Entry            `json:"entries"`
}

// FilterByGroup returns the entries whose group-title equals group exactly.
func (p *Playlist) FilterByGroup(group string) []Entry {
	var out []Entry
	for _, e := range p.Entries {
		if e.Attrs.GroupTitle == group {
			out = append(out, e)
		}
	}
	return out
}

// Search returns the entries whose display name contains q,
// case-insensitively.
func (p *Playlist) Search(q string) []Entry {
	q = strings.ToLower(q)
	var out []Entry
	for _, e := range p.Entries {
		if strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

// Groups returns the distinct group titles in first-seen order.
func (p *Playlist) Groups() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range p.Entries {
		g := e.Attrs.GroupTitle
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// kindFromLocator derives the media kind from the locator path, checking
// /movie/, /series/ and /live/ in that priority order. Only the URL path is
// consulted; markers in the host or query never classify.
func kindFromLocator(loc Locator) MediaKind {
	if loc.IsDegraded() {
		return KindUnknown
	}
	u, err := url.Parse(loc.String())
	if err != nil {
		return KindUnknown
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.Contains(path, "/movie/"):
		return KindMovie
	case strings.Contains(path, "/series/"):
		return KindSeries
	case strings.Contains(path, "/live/"):
		return KindLive
	default:
		return KindUnknown
	}
}
