package feed

import (
	"time"

	"feedguard/internal/threat"
)

// Type selects which parser decodes a feed payload.
type Type string

const (
	TypeJSON Type = "json"
	TypeCSV  Type = "csv"
	TypeXML  Type = "xml"
	TypeTXT  Type = "txt"
)

// AuthType is the closed set of outbound authentication schemes.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthAPIKey AuthType = "api_key"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
)

// Credentials holds the secret material for a scheme. Only the fields the
// scheme needs are consulted.
type Credentials struct {
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
}

// AuthConfig describes how to authenticate against a feed URL.
type AuthConfig struct {
	Type        AuthType    `json:"type" yaml:"type"`
	Credentials Credentials `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// FieldMap declares which raw-record keys hold the indicator value and its
// optional attributes. IndicatorField is the only required entry.
type FieldMap struct {
	IndicatorField  string `json:"indicator_field" yaml:"indicator_field"`
	TypeField       string `json:"type_field,omitempty" yaml:"type_field,omitempty"`
	ConfidenceField string `json:"confidence_field,omitempty" yaml:"confidence_field,omitempty"`
	TagsField       string `json:"tags_field,omitempty" yaml:"tags_field,omitempty"`
	TimestampField  string `json:"timestamp_field,omitempty" yaml:"timestamp_field,omitempty"`
}

// Filters restricts which mapped candidates are accepted for storage.
type Filters struct {
	IndicatorTypes []threat.Type `json:"indicator_types,omitempty" yaml:"indicator_types,omitempty"`
	MinConfidence  int           `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
	TagsInclude    []string      `json:"tags_include,omitempty" yaml:"tags_include,omitempty"`
	TagsExclude    []string      `json:"tags_exclude,omitempty" yaml:"tags_exclude,omitempty"`
}

// Feed is the configuration of one external indicator source: what to
// fetch, how to authenticate, how to decode the payload, and how often to
// re-ingest it. IndicatorCount mirrors the number of stored indicators
// whose SourceFeed equals ID and is recomputed after every successful run.
type Feed struct {
	ID              string     `json:"id" yaml:"id,omitempty"`
	Name            string     `json:"name" yaml:"name"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty"`
	URL             string     `json:"url" yaml:"url"`
	Type            Type       `json:"type" yaml:"type"`
	Format          string     `json:"format,omitempty" yaml:"format,omitempty"`
	Auth            AuthConfig `json:"authentication" yaml:"authentication"`
	RefreshInterval int        `json:"refresh_interval" yaml:"refresh_interval"` // minutes
	Enabled         bool       `json:"enabled" yaml:"enabled"`
	Fields          FieldMap   `json:"fields" yaml:"fields"`
	Filters         *Filters   `json:"filters,omitempty" yaml:"filters,omitempty"`
	LastUpdated     time.Time  `json:"last_updated" yaml:"-"`
	LastError       string     `json:"last_error,omitempty" yaml:"-"`
	IndicatorCount  int        `json:"indicator_count" yaml:"-"`
	CreatedAt       time.Time  `json:"created_at" yaml:"-"`
	CreatedBy       string     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// UpdatePatch is a partial feed update. Nil fields are left untouched.
type UpdatePatch struct {
	Name            *string     `json:"name,omitempty"`
	Description     *string     `json:"description,omitempty"`
	URL             *string     `json:"url,omitempty"`
	Type            *Type       `json:"type,omitempty"`
	Format          *string     `json:"format,omitempty"`
	Auth            *AuthConfig `json:"authentication,omitempty"`
	RefreshInterval *int        `json:"refresh_interval,omitempty"`
	Enabled         *bool       `json:"enabled,omitempty"`
	Fields          *FieldMap   `json:"fields,omitempty"`
	Filters         *Filters    `json:"filters,omitempty"`
}

// IngestionResult is the immutable audit record of one ingestion run.
type IngestionResult struct {
	FeedID              string    `json:"feed_id"`
	Success             bool      `json:"success"`
	IndicatorsProcessed int       `json:"indicators_processed"`
	IndicatorsAdded     int       `json:"indicators_added"`
	IndicatorsUpdated   int       `json:"indicators_updated"`
	Errors              []string  `json:"errors"`
	ProcessingTime      int64     `json:"processing_time"` // milliseconds
	Timestamp           time.Time `json:"timestamp"`
}
