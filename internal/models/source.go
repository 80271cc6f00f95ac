package models

import "time"

// Source type constants.
const (
	SourceTypeM3U     int16 = 0 // inline M3U text
	SourceTypeM3ULink int16 = 1 // remote M3U URL
)

// Source is one configured playlist source (typically a remote M3U URL).
type Source struct {
	ID          int64      `json:"id,omitempty"`
	Name        string     `json:"name"`
	URL         string     `json:"url,omitempty"`
	SourceType  int16      `json:"source_type"`
	UserAgent   string     `json:"user_agent,omitempty"`
	Enabled     bool       `json:"enabled"`
	EPGURL      string     `json:"epg_url,omitempty"` // from the playlist header
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}
