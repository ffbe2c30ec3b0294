package threat

import "time"

// Type identifies the shape of an indicator value.
type Type string

const (
	TypeIP     Type = "ip"
	TypeDomain Type = "domain"
	TypeHash   Type = "hash"
	TypeURL    Type = "url"
	TypeEmail  Type = "email"
)

// Indicator is a piece of threat intelligence ingested from a feed.
// The pair (Indicator, SourceFeed) is unique: re-ingesting the same value
// from the same feed updates the existing row instead of duplicating it.
type Indicator struct {
	ID         string            `json:"id"`
	Indicator  string            `json:"indicator"`
	Type       Type              `json:"type"`
	Confidence int               `json:"confidence"`
	Tags       []string          `json:"tags"`
	SourceFeed string            `json:"source_feed"`
	FirstSeen  time.Time         `json:"first_seen"`
	LastSeen   time.Time         `json:"last_seen"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Candidate is a normalized indicator produced by the mapping stage,
// not yet persisted. Timestamp carries the observation time reported by
// the feed itself, when the field mapping declares one.
type Candidate struct {
	Indicator  string
	Type       Type
	Confidence int
	Tags       []string
	Timestamp  time.Time
	SourceFeed string
	Metadata   map[string]string
}
