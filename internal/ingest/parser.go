package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"feedguard/internal/feed"
)

// Record is one loosely-typed row decoded from a feed payload.
type Record map[string]string

// txtIndicatorField is the synthetic key txt records carry their line
// under; txt feeds always auto-classify, so no other fields exist.
const txtIndicatorField = "indicator"

// Parse decodes a raw feed payload into records according to the feed
// type. JSON parsing is all-or-nothing: a malformed document is a fatal
// error for the run. CSV and txt parsing are best-effort: bad lines are
// skipped. Source order is preserved.
func Parse(raw []byte, t feed.Type) ([]Record, error) {
	switch t {
	case feed.TypeJSON:
		return parseJSON(raw)
	case feed.TypeCSV:
		return parseCSV(raw)
	case feed.TypeTXT:
		return parseTXT(raw)
	default:
		return nil, fmt.Errorf("unsupported feed type: %q", t)
	}
}

// parseJSON accepts a single object or an array of objects; a single
// object becomes a one-element sequence. Non-object array elements are
// skipped.
func parseJSON(raw []byte) ([]Record, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse JSON feed: %w", err)
	}

	var items []interface{}
	switch v := doc.(type) {
	case []interface{}:
		items = v
	default:
		items = []interface{}{doc}
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		rec := make(Record, len(obj))
		for k, v := range obj {
			rec[k] = stringifyJSONValue(v)
		}
		records = append(records, rec)
	}
	return records, nil
}

func stringifyJSONValue(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// parseCSV zips each row against the first-line headers. Ragged rows fill
// missing trailing fields with the empty string; rows the CSV reader
// rejects are skipped.
func parseCSV(raw []byte) ([]Record, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("parse CSV header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	records := make([]Record, 0)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Best-effort: one bad row never aborts the run.
			continue
		}
		rec := make(Record, len(headers))
		empty := true
		for i, h := range headers {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			if v != "" {
				empty = false
			}
			rec[h] = v
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseTXT treats each line as one indicator value. Blank lines and
// comment lines starting with '#' are skipped.
func parseTXT(raw []byte) ([]Record, error) {
	records := make([]Record, 0)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		records = append(records, Record{txtIndicatorField: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse txt feed: %w", err)
	}
	return records, nil
}
