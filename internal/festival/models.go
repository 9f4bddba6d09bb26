// Package festival defines the data model of the festival backend and the
// REST client that talks to it.
package festival

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is an opaque identifier. The backend is inconsistent about whether it
// sends identifiers as JSON strings or numbers, so both are accepted.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// ActivityMetadata carries optional nested metadata; MaxParticipants is an
// override consulted when the top-level capacity field is absent.
type ActivityMetadata struct {
	MaxParticipants *int     `json:"max_participants,omitempty"`
	Organizer       string   `json:"organizer,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Activity is a single scheduled event instance.
//
// Start and End are kept as raw strings: presence (non-null) is a
// validation concern, parseability a conflict-evaluation concern, and the
// two are deliberately separate stages of the pipeline.
type Activity struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	Location    string  `json:"location,omitempty"`

	Capacity             *int `json:"capacity,omitempty"`
	CurrentSubscriptions *int `json:"current_subscriptions,omitempty"`
	Subscriptions        *int `json:"subscriptions,omitempty"`

	Metadata *ActivityMetadata `json:"metadata,omitempty"`

	// Debug annotations set by the deduplicators on survivors.
	TitleHash string `json:"title_hash,omitempty"`
	DedupKey  string `json:"dedup_key,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// DisplayName returns the trimmed name, falling back to the title.
func (a *Activity) DisplayName() string {
	if a == nil {
		return ""
	}
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return strings.TrimSpace(a.Title)
}

// EffectiveCapacity reads capacity from the direct field first, then the
// nested metadata override. ok is false when neither is set.
func (a *Activity) EffectiveCapacity() (int, bool) {
	if a.Capacity != nil {
		return *a.Capacity, true
	}
	if a.Metadata != nil && a.Metadata.MaxParticipants != nil {
		return *a.Metadata.MaxParticipants, true
	}
	return 0, false
}

// EffectiveSubscriptions reads the current subscription count from either
// accepted field name, in priority order.
func (a *Activity) EffectiveSubscriptions() int {
	if a.CurrentSubscriptions != nil {
		return *a.CurrentSubscriptions
	}
	if a.Subscriptions != nil {
		return *a.Subscriptions
	}
	return 0
}

// Participant is the per-user record fetched for a logged-in user.
type Participant struct {
	Username    string   `json:"username"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	ActivityIDs []ID     `json:"activities"`
	Labels      []string `json:"labels"`
	TrackID     ID       `json:"track_id,omitempty"`
}

// HasCompletedWizard reports whether the preference wizard was finished:
// the labels set must be present and non-empty.
func (p *Participant) HasCompletedWizard() bool {
	return p != nil && p.Labels != nil && len(p.Labels) > 0
}

// WordPressUser is the WordPress side of the flattened profile payload.
type WordPressUser struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Profile bundles the participant and WordPress user extracted from the
// raw profile payload.
type Profile struct {
	Participant   *Participant   `json:"participant,omitempty"`
	WordPressUser *WordPressUser `json:"wordpress_user,omitempty"`
}

// Track is a curated bundle of activities a participant can subscribe to
// as a set. ActivityNumbers filters the activity list by track membership.
type Track struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ActivityNumbers []ID   `json:"activity_numbers"`
}

// TrackSuggestion and ActivitySuggestion carry a match score computed by
// the backend; scores are passed through opaquely.
type TrackSuggestion struct {
	Track Track   `json:"track"`
	Score float64 `json:"score"`
}

type ActivitySuggestion struct {
	Activity Activity `json:"activity"`
	Score    float64  `json:"score"`
}

// SuggestionBundle is session-only data: never cached past the session,
// cleared on logout and on a full provider reset.
type SuggestionBundle struct {
	Tracks     []TrackSuggestion    `json:"tracks"`
	Activities []ActivitySuggestion `json:"activities"`
}
