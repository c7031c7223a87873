package domain

import (
	"time"

	"github.com/google/uuid"
)

// Link is the canonical record behind a short code.
//
// It is NOT tied to any storage engine. Stores map their rows into this
// structure and back.
//
// A Link is uniquely identified by its Code among non-deleted records.
type Link struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned at creation and never changes.
	ID uuid.UUID `json:"id"`

	// Code is the path segment used in the short URL.
	// Example: demo-v2
	Code string `json:"code"`

	// Destination is the absolute http(s) URL the code redirects to.
	Destination string `json:"destination"`

	// IsCustomCode is true when the caller chose Code.
	IsCustomCode bool `json:"is_custom_code"`

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	// IsActive is the persisted operator switch (disable/enable).
	IsActive bool `json:"is_active"`

	// Expired is set by the expiry sweeper once ExpiresAt has passed.
	// It is a write-back of EffectiveStatus, never the source of truth.
	Expired bool `json:"expired,omitempty"`

	// ExpiresAt is optional; nil means the link never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is set once at creation.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is bumped on every lifecycle mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// ClickEvent records one successfully resolved redirect.
// Events are append-only and owned by their Link.
type ClickEvent struct {
	ID        uuid.UUID `json:"id"`
	LinkID    uuid.UUID `json:"link_id"`
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// DailyCount is one bucket of the per-day click series.
// Day is formatted as 2006-01-02 (UTC).
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// NewLink builds a fresh active link with a new id.
func NewLink(code, destination string, custom bool, expiresAt *time.Time, now time.Time) *Link {
	now = now.UTC()
	var exp *time.Time
	if expiresAt != nil {
		t := expiresAt.UTC()
		exp = &t
	}
	return &Link{
		ID:           uuid.New(),
		Code:         code,
		Destination:  destination,
		IsCustomCode: custom,
		IsActive:     true,
		ExpiresAt:    exp,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewClickEvent builds a click event with a new id.
func NewClickEvent(linkID uuid.UUID, clickedAt time.Time, ip, userAgent string) *ClickEvent {
	return &ClickEvent{
		ID:        uuid.New(),
		LinkID:    linkID,
		ClickedAt: clickedAt.UTC(),
		IPAddress: truncate(ip, MaxIPAddressLength),
		UserAgent: userAgent,
	}
}

// MaxIPAddressLength fits a textual IPv6 address.
const MaxIPAddressLength = 45

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
