package models

// Group is a channel category, fed by group-title attributes.
type Group struct {
	ID       int64   `json:"id,omitempty"`
	Name     string  `json:"name"`
	Image    *string `json:"image,omitempty"`
	SourceID int64   `json:"source_id"`
}
