package ingest

import (
	"strconv"
	"strings"
	"time"

	"feedguard/internal/feed"
	"feedguard/internal/threat"
)

const defaultConfidence = 50

// Timestamp layouts accepted from feeds, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// MapRecord applies a feed's field mapping to one decoded record. It
// returns false when the record carries no indicator value; every other
// malformed optional field degrades to its default instead of failing the
// record. Record keys not consumed by the mapping are kept as metadata.
func MapRecord(rec Record, fields feed.FieldMap, now time.Time) (*threat.Candidate, bool) {
	value := strings.TrimSpace(rec[fields.IndicatorField])
	if value == "" {
		return nil, false
	}

	c := &threat.Candidate{
		Indicator:  value,
		Confidence: defaultConfidence,
		Tags:       []string{},
		Timestamp:  now,
	}

	if fields.TypeField != "" {
		if t := strings.TrimSpace(rec[fields.TypeField]); t != "" {
			c.Type = threat.Type(t)
		}
	}
	if c.Type == "" {
		c.Type = threat.Classify(value)
	}

	if fields.ConfidenceField != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(rec[fields.ConfidenceField])); err == nil {
			c.Confidence = clampConfidence(n)
		}
	}

	if fields.TagsField != "" {
		for _, tag := range strings.Split(rec[fields.TagsField], ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				c.Tags = append(c.Tags, tag)
			}
		}
	}

	if fields.TimestampField != "" {
		if ts, ok := parseTimestamp(rec[fields.TimestampField]); ok {
			c.Timestamp = ts
		}
	}

	consumed := map[string]bool{
		fields.IndicatorField:  true,
		fields.TypeField:       true,
		fields.ConfidenceField: true,
		fields.TagsField:       true,
		fields.TimestampField:  true,
	}
	for k, v := range rec {
		if consumed[k] || v == "" {
			continue
		}
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		c.Metadata[k] = v
	}

	return c, true
}

func clampConfidence(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// PassesFilters applies a feed's advisory filters to a mapped candidate.
// A nil filter set accepts everything.
func PassesFilters(c *threat.Candidate, f *feed.Filters) bool {
	if f == nil {
		return true
	}
	if len(f.IndicatorTypes) > 0 {
		allowed := false
		for _, t := range f.IndicatorTypes {
			if c.Type == t {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if c.Confidence < f.MinConfidence {
		return false
	}
	if len(f.TagsInclude) > 0 && !hasAnyTag(c.Tags, f.TagsInclude) {
		return false
	}
	if hasAnyTag(c.Tags, f.TagsExclude) {
		return false
	}
	return true
}

func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}
