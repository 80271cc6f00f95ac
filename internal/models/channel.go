package models

import (
	"strings"

	"github.com/voyagen/channelvault/internal/m3u"
)

// Media type constants, derived from the parsed entry kind.
const (
	MediaTypeLivestream int16 = 0
	MediaTypeMovie      int16 = 1
	MediaTypeSerie      int16 = 2
)

// Channel is one persisted playlist entry.
type Channel struct {
	ID        int64   `json:"id,omitempty"`
	Name      string  `json:"name"`
	URL       string  `json:"url,omitempty"`
	TvgID     *string `json:"tvg_id,omitempty"`
	Group     *string `json:"group,omitempty"`
	Image     *string `json:"image,omitempty"`
	MediaType int16   `json:"media_type"`
	Duration  int     `json:"duration"`
	Degraded  bool    `json:"degraded"` // locator was a maximum-resilience placeholder
	SourceID  int64   `json:"source_id,omitempty"`
	GroupID   *int64  `json:"group_id,omitempty"`
	Favorite  bool    `json:"favorite"`
	GroupName *string `json:"group_name,omitempty"` // populated by read queries
}

// MediaTypeFromEntry maps a parsed entry onto the storage media type. Kind
// wins; for unknown kinds the file extension decides, matching how plain
// live playlists mix VOD files in.
func MediaTypeFromEntry(e m3u.Entry) int16 {
	switch e.Kind {
	case m3u.KindMovie:
		return MediaTypeMovie
	case m3u.KindSeries:
		return MediaTypeSerie
	case m3u.KindLive:
		return MediaTypeLivestream
	}
	if hasMovieExtension(e.Locator.String()) {
		return MediaTypeMovie
	}
	return MediaTypeLivestream
}

func hasMovieExtension(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range []string{".mp4", ".mkv", ".avi", ".mov"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
