package sql

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/hop/internal/domain"
)

// linkRow is the persisted shape of a domain.Link.
//
// Indexes:
//   - idx_links_code: unique, the redirect point lookup and the only arbiter
//     of concurrent claims on a code
//   - idx_links_active_created: paginated listing with an is_active filter
type linkRow struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code         string     `gorm:"size:32;not null;uniqueIndex:idx_links_code"`
	Destination  string     `gorm:"size:2048;not null;index:idx_links_destination"`
	IsCustomCode bool       `gorm:"not null"`
	IsActive     bool       `gorm:"not null;index:idx_links_active_created,priority:1"`
	Expired      bool       `gorm:"not null"`
	ExpiresAt    *time.Time `gorm:"index:idx_links_expires_at"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime:false;index:idx_links_active_created,priority:2"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime:false"`

	Clicks []clickRow `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE"`
}

func (linkRow) TableName() string { return "links" }

// clickRow is append-only. idx_clicks_link_clicked serves every analytics
// query (count, recent, per day).
type clickRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	LinkID    uuid.UUID `gorm:"type:uuid;not null;index:idx_clicks_link_clicked,priority:1"`
	ClickedAt time.Time `gorm:"not null;index:idx_clicks_link_clicked,priority:2"`
	IPAddress *string   `gorm:"size:45"`
	UserAgent *string   `gorm:"type:text"`
}

func (clickRow) TableName() string { return "click_events" }

type dayRow struct {
	Day   string
	Count int64
}

func linkFromDomain(l *domain.Link) *linkRow {
	return &linkRow{
		ID:           l.ID,
		Code:         l.Code,
		Destination:  l.Destination,
		IsCustomCode: l.IsCustomCode,
		IsActive:     l.IsActive,
		Expired:      l.Expired,
		ExpiresAt:    utcPtr(l.ExpiresAt),
		CreatedAt:    l.CreatedAt.UTC(),
		UpdatedAt:    l.UpdatedAt.UTC(),
	}
}

func (r *linkRow) toDomain() *domain.Link {
	return &domain.Link{
		ID:           r.ID,
		Code:         r.Code,
		Destination:  r.Destination,
		IsCustomCode: r.IsCustomCode,
		IsActive:     r.IsActive,
		Expired:      r.Expired,
		ExpiresAt:    utcPtr(r.ExpiresAt),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func clickFromDomain(e *domain.ClickEvent) *clickRow {
	return &clickRow{
		ID:        e.ID,
		LinkID:    e.LinkID,
		ClickedAt: e.ClickedAt.UTC(),
		IPAddress: optional(e.IPAddress),
		UserAgent: optional(e.UserAgent),
	}
}

func (r *clickRow) toDomain() *domain.ClickEvent {
	e := &domain.ClickEvent{
		ID:        r.ID,
		LinkID:    r.LinkID,
		ClickedAt: r.ClickedAt.UTC(),
	}
	if r.IPAddress != nil {
		e.IPAddress = *r.IPAddress
	}
	if r.UserAgent != nil {
		e.UserAgent = *r.UserAgent
	}
	return e
}

// optional maps "" to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
