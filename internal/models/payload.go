package models

import (
	"strings"
	"time"
)

// SearchEventPayload is the wire format of a "search performed" event.
type SearchEventPayload struct {
	EventID     string     `json:"eventId"`
	UserID      string     `json:"userId,omitempty"`
	AnonymousID string     `json:"anonymousId,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	Query       string     `json:"query"`
	Country     string     `json:"country,omitempty"`
	OccurredAt  *time.Time `json:"occurredAt,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
}

// ValidForAggregation reports whether the payload can contribute to the
// daily aggregates: it needs a non-blank query and a producer timestamp.
func (p *SearchEventPayload) ValidForAggregation() bool {
	return strings.TrimSpace(p.Query) != "" && p.OccurredAt != nil && !p.OccurredAt.IsZero()
}

// Key resolves the partition key for the event. Preference order keeps
/// one user's events on one partition: user, anonymous visitor, session,
// then the event id as a stable fallback.
func (p *SearchEventPayload) Key() string {
	switch {
	case strings.TrimSpace(p.UserID) != "":
		return p.UserID
	case strings.TrimSpace(p.AnonymousID) != "":
		return p.AnonymousID
	case strings.TrimSpace(p.SessionID) != "":
		return p.SessionID
	}
	return p.EventID
}
