// Package ingest implements the feed ingestion pipeline: authenticate,
// fetch, parse, normalize, and upsert, plus the auto-refresh scheduler
// that drives it.
package ingest

import (
	"encoding/base64"

	"feedguard/internal/feed"
)

// Headers builds the outbound request headers for a feed's authentication
// scheme. Missing credential fields degrade to empty values so the failure
// surfaces at the transport layer during the run, not here.
func Headers(a feed.AuthConfig) map[string]string {
	h := make(map[string]string)
	switch a.Type {
	case feed.AuthAPIKey:
		h["X-API-Key"] = a.Credentials.APIKey
	case feed.AuthBearer:
		h["Authorization"] = "Bearer " + a.Credentials.Token
	case feed.AuthBasic:
		cred := base64.StdEncoding.EncodeToString(
			[]byte(a.Credentials.Username + ":" + a.Credentials.Password))
		h["Authorization"] = "Basic " + cred
	}
	return h
}
