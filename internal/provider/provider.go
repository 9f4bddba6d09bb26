// Package provider mediates every backend read through a TTL cache with
// in-flight fetch de-duplication. Handlers never call the festival client
// directly for reads.
package provider

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"signup-gateway/internal/common/logger"
	"signup-gateway/internal/common/metrics"
	"signup-gateway/internal/festival"
)

// Resource keys; the profile key is suffixed with the username so a user
// switch never serves another user's data.
const (
	ResourceActivities = "activities"
	ResourceTracks     = "tracks"
	ResourceProfile    = "userProfile"
)

// DefaultTTL is how long a fetched payload counts as fresh.
const DefaultTTL = 5 * time.Minute

// Clock is injectable so TTL behavior is testable without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Fetcher is the read surface of the festival client the provider needs.
type Fetcher interface {
	AllActivities(ctx context.Context) ([]*festival.Activity, error)
	AllTracks(ctx context.Context) ([]*festival.Track, error)
	Participant(ctx context.Context, username string) (*festival.Participant, error)
	Suggestions(ctx context.Context, username string) (*festival.SuggestionBundle, error)
}

type slotState int

const (
	stateIdle slotState = iota
	stateFetching
	stateFresh
	stateErrored
)

type slot struct {
	state     slotState
	fetchedAt time.Time
	lastError string
}

// Provider owns slot state; payloads live in the Store so the cache can be
// shared across replicas when backed by Redis.
type Provider struct {
	fetcher Fetcher
	store   Store
	clock   Clock
	ttl     time.Duration
	logger  logger.Logger

	mu       sync.Mutex
	slots    map[string]*slot
	username string
	wpUser   *festival.WordPressUser

	// Session-only; never written to the store.
	suggestions *festival.SuggestionBundle
}

func New(fetcher Fetcher, store Store, ttl time.Duration, clock Clock, log logger.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Provider{
		fetcher: fetcher,
		store:   store,
		clock:   clock,
		ttl:     ttl,
		logger:  log.WithFields(map[string]interface{}{"component": "provider"}),
		slots:   make(map[string]*slot),
	}
}

// Login binds the provider to a username and invalidates any profile data
// cached for a previous user.
func (p *Provider) Login(ctx context.Context, username string, wpUser *festival.WordPressUser) {
	p.mu.Lock()
	previous := p.username
	p.username = username
	p.wpUser = wpUser
	p.suggestions = nil
	delete(p.slots, profileKey(previous))
	delete(p.slots, profileKey(username))
	p.mu.Unlock()

	if previous != "" && previous != username {
		_ = p.store.Delete(ctx, profileKey(previous))
	}
	_ = p.store.Delete(ctx, profileKey(username))
}

// Logout clears the user binding, the cached profile, and the session-only
// suggestion bundle. Shared resources (activities, tracks) stay cached.
func (p *Provider) Logout(ctx context.Context) {
	p.mu.Lock()
	username := p.username
	p.username = ""
	p.wpUser = nil
	p.suggestions = nil
	delete(p.slots, profileKey(username))
	p.mu.Unlock()

	if username != "" {
		_ = p.store.Delete(ctx, profileKey(username))
	}
}

// Reset drops everything: all slots, all stored payloads, the session
// suggestions. The user binding survives.
func (p *Provider) Reset(ctx context.Context) {
	p.mu.Lock()
	p.slots = make(map[string]*slot)
	p.suggestions = nil
	p.mu.Unlock()
	_ = p.store.Clear(ctx)
}

// Username returns the bound username, empty when anonymous.
func (p *Provider) Username() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.username
}

// IsUserLoggedIn is derived, never cached.
func (p *Provider) IsUserLoggedIn() bool {
	return p.Username() != ""
}

// Activities returns the cached activity list, refreshing it when stale.
// force bypasses the TTL. On fetch failure prior data is returned together
// with the error.
func (p *Provider) Activities(ctx context.Context, force bool) ([]*festival.Activity, error) {
	raw, err := p.resource(ctx, ResourceActivities, force, func(ctx context.Context) (interface{}, error) {
		return p.fetcher.AllActivities(ctx)
	})
	var activities []*festival.Activity
	decodeRaw(raw, &activities)
	return activities, err
}

// Tracks returns the cached track list, refreshing it when stale.
func (p *Provider) Tracks(ctx context.Context, force bool) ([]*festival.Track, error) {
	raw, err := p.resource(ctx, ResourceTracks, force, func(ctx context.Context) (interface{}, error) {
		return p.fetcher.AllTracks(ctx)
	})
	var tracks []*festival.Track
	decodeRaw(raw, &tracks)
	return tracks, err
}

// Participant returns the cached participant record for the bound user,
// or nil when anonymous.
func (p *Provider) Participant(ctx context.Context, force bool) (*festival.Participant, error) {
	username := p.Username()
	if username == "" {
		return nil, nil
	}
	raw, err := p.resource(ctx, profileKey(username), force, func(ctx context.Context) (interface{}, error) {
		return p.fetcher.Participant(ctx, username)
	})
	var participant *festival.Participant
	decodeRaw(raw, &participant)
	return participant, err
}

// Profile flattens the participant and WordPress user into one payload.
func (p *Provider) Profile(ctx context.Context, force bool) (*festival.Profile, error) {
	participant, err := p.Participant(ctx, force)
	p.mu.Lock()
	wpUser := p.wpUser
	p.mu.Unlock()
	return &festival.Profile{Participant: participant, WordPressUser: wpUser}, err
}

// HasCompletedWizard is derived from the current participant snapshot.
func (p *Provider) HasCompletedWizard(ctx context.Context) bool {
	participant, _ := p.Participant(ctx, false)
	return participant.HasCompletedWizard()
}

// Suggestions bypasses the TTL store entirely: fetched once per session on
// demand, held in memory, cleared on logout and reset.
func (p *Provider) Suggestions(ctx context.Context, force bool) (*festival.SuggestionBundle, error) {
	username := p.Username()
	if username == "" {
		return nil, nil
	}

	p.mu.Lock()
	cached := p.suggestions
	p.mu.Unlock()
	if cached != nil && !force {
		return cached, nil
	}

	bundle, err := p.fetcher.Suggestions(ctx, username)
	if err != nil {
		metrics.CacheFetches.WithLabelValues("suggestions", "error").Inc()
		return cached, err
	}
	metrics.CacheFetches.WithLabelValues("suggestions", "fetch").Inc()

	p.mu.Lock()
	p.suggestions = bundle
	p.mu.Unlock()
	return bundle, nil
}

// LastError returns the error string of the slot's most recent failed
// fetch, empty when the slot is healthy.
func (p *Provider) LastError(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots[key]; ok {
		return s.lastError
	}
	return ""
}

// resource runs the slot state machine for one key. The mutex is released
// during the backend call; a concurrent caller that finds the slot in
// Fetching returns the prior snapshot immediately instead of waiting.
func (p *Provider) resource(ctx context.Context, key string, force bool, fetch func(context.Context) (interface{}, error)) (json.RawMessage, error) {
	p.mu.Lock()
	s, ok := p.slots[key]
	if !ok {
		s = &slot{}
		p.slots[key] = s
	}

	if s.state == stateFetching {
		p.mu.Unlock()
		metrics.CacheFetches.WithLabelValues(key, "inflight_skip").Inc()
		return p.snapshot(ctx, key), nil
	}

	fresh := s.state == stateFresh && p.clock.Now().Sub(s.fetchedAt) < p.ttl
	if fresh && !force {
		p.mu.Unlock()
		metrics.CacheFetches.WithLabelValues(key, "hit").Inc()
		return p.snapshot(ctx, key), nil
	}

	s.state = stateFetching
	p.mu.Unlock()

	value, err := fetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		s.state = stateErrored
		s.lastError = err.Error()
		metrics.CacheFetches.WithLabelValues(key, "error").Inc()
		p.logger.Warn("resource fetch failed, keeping prior data", map[string]interface{}{
			"resource": key,
			"error":    err.Error(),
		})
		return p.snapshot(ctx, key), err
	}

	data, merr := json.Marshal(value)
	if merr != nil {
		s.state = stateErrored
		s.lastError = merr.Error()
		metrics.CacheFetches.WithLabelValues(key, "error").Inc()
		return p.snapshot(ctx, key), merr
	}

	now := p.clock.Now()
	if serr := p.store.Set(ctx, key, &Entry{Data: data, FetchedAt: now}); serr != nil {
		// The fetched payload still goes to this caller, but the slot
		// must not claim freshness over data the store never took: a
		// within-TTL read would then serve an empty snapshot as healthy.
		s.state = stateErrored
		s.lastError = serr.Error()
		metrics.CacheFetches.WithLabelValues(key, "store_error").Inc()
		p.logger.Warn("cache store write failed", map[string]interface{}{
			"resource": key,
			"error":    serr.Error(),
		})
		return data, nil
	}
	s.state = stateFresh
	s.fetchedAt = now
	s.lastError = ""
	metrics.CacheFetches.WithLabelValues(key, "fetch").Inc()
	return data, nil
}

func (p *Provider) snapshot(ctx context.Context, key string) json.RawMessage {
	entry, ok, err := p.store.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	return entry.Data
}

func decodeRaw(raw json.RawMessage, out interface{}) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func profileKey(username string) string {
	return ResourceProfile + ":" + username
}
