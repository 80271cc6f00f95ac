package models

// ChannelHTTPHeaders holds optional per-channel HTTP headers collected from
// #EXTVLCOPT lines.
type ChannelHTTPHeaders struct {
	ID         int64   `json:"id,omitempty"`
	ChannelID  int64   `json:"channel_id,omitempty"`
	Referrer   *string `json:"referrer,omitempty"`
	UserAgent  *string `json:"user_agent,omitempty"`
	HTTPOrigin *string `json:"http_origin,omitempty"`
}
