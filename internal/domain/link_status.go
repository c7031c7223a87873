package domain

import "time"

// Status is the effective lifecycle state of a link.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusExpired  Status = "expired"
)

// EffectiveStatus derives the lifecycle state from persisted fields.
// Expiry takes precedence over the active flag: a link past its ExpiresAt is
// Expired even if IsActive is still true.
func EffectiveStatus(link *Link, now time.Time) Status {
	if IsExpired(link, now) {
		return StatusExpired
	}
	if !link.IsActive {
		return StatusDisabled
	}
	return StatusActive
}

// IsExpired reports whether expires_at <= now or the sweeper already flagged
// the link.
func IsExpired(link *Link, now time.Time) bool {
	if link.Expired {
		return true
	}
	return link.ExpiresAt != nil && !link.ExpiresAt.After(now)
}
