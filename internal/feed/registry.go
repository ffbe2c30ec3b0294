package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a feed id is not registered.
var ErrNotFound = errors.New("feed not found")

const defaultRefreshInterval = 60 // minutes

// Registry is the store of feed configurations. All methods are safe for
// concurrent use; returned feeds are copies of the registry's state.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]*Feed
	order []string
}

func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]*Feed)}
}

// Create validates f, assigns id and creation metadata, and stores it.
// Run state (last_updated, last_error, indicator_count) always starts
// zeroed regardless of what the caller supplied.
func (r *Registry) Create(f Feed) (*Feed, error) {
	var missing []string
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(f.URL) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(f.Fields.IndicatorField) == "" {
		missing = append(missing, "fields.indicator_field")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if f.RefreshInterval < 1 {
		f.RefreshInterval = defaultRefreshInterval
	}
	if f.Auth.Type == "" {
		f.Auth.Type = AuthNone
	}

	f.ID = uuid.NewString()
	f.CreatedAt = time.Now()
	f.LastUpdated = time.Time{}
	f.LastError = ""
	f.IndicatorCount = 0

	r.mu.Lock()
	r.feeds[f.ID] = &f
	r.order = append(r.order, f.ID)
	r.mu.Unlock()

	slog.Info("threat feed created", "feed", f.Name, "feed_id", f.ID)
	cp := f
	return &cp, nil
}

// List returns all feeds in creation order.
func (r *Registry) List() []Feed {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Feed, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.feeds[id])
	}
	return out
}

func (r *Registry) Get(id string) (*Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feeds[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// Update applies the non-nil fields of p to the feed. Config changes take
// effect on the next ingestion run.
func (r *Registry) Update(id string, p UpdatePatch) (*Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.URL != nil {
		f.URL = *p.URL
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Format != nil {
		f.Format = *p.Format
	}
	if p.Auth != nil {
		f.Auth = *p.Auth
	}
	if p.RefreshInterval != nil && *p.RefreshInterval >= 1 {
		f.RefreshInterval = *p.RefreshInterval
	}
	if p.Enabled != nil {
		f.Enabled = *p.Enabled
	}
	if p.Fields != nil && strings.TrimSpace(p.Fields.IndicatorField) != "" {
		f.Fields = *p.Fields
	}
	if p.Filters != nil {
		f.Filters = p.Filters
	}
	cp := *f
	return &cp, nil
}

// Delete removes the feed and returns its final state so the caller can
// cascade the indicator purge.
func (r *Registry) Delete(id string) (*Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.feeds, id)
	for i, fid := range r.order {
		if fid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	slog.Info("threat feed deleted", "feed", f.Name, "feed_id", id)
	cp := *f
	return &cp, nil
}

// SetRunSuccess records a successful ingestion run: last_updated moves to
// when, last_error clears, and indicator_count takes the recomputed value.
func (r *Registry) SetRunSuccess(id string, when time.Time, indicatorCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[id]; ok {
		f.LastUpdated = when
		f.LastError = ""
		f.IndicatorCount = indicatorCount
	}
}

// SetRunFailure records a failed run. Indicator count and last_updated are
// deliberately left at their pre-failure values.
func (r *Registry) SetRunFailure(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.feeds[id]; ok {
		f.LastError = message
	}
}
