package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MrSnakeDoc/hop/internal/domain"
)

// Store is the relational domain.LinkStore (PostgreSQL or SQLite via gorm).
type Store struct {
	db     *gorm.DB
	driver string
}

// Migrate creates or updates the links and click_events tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&linkRow{}, &clickRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ping(ctx, s.db); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) InsertLink(ctx context.Context, link *domain.Link) error {
	return translate("insert link", s.db.WithContext(ctx).Create(linkFromDomain(link)).Error)
}

func (s *Store) FindLinkByCode(ctx context.Context, code string) (*domain.Link, error) {
	var row linkRow
	if err := s.db.WithContext(ctx).Where("code = ?", code).Take(&row).Error; err != nil {
		return nil, translate("find link", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindActiveLinkByDestination(ctx context.Context, destination string, now time.Time) (*domain.Link, error) {
	var row linkRow
	err := s.db.WithContext(ctx).
		Where("destination = ? AND is_custom_code = ? AND is_active = ? AND expired = ?", destination, false, true, false).
		Where("(expires_at IS NULL OR expires_at > ?)", now.UTC()).
		Order("created_at ASC").
		Take(&row).Error
	if err != nil {
		return nil, translate("find link by destination", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateLinkStatus(ctx context.Context, code string, active bool, now time.Time) (*domain.Link, error) {
	var row linkRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&linkRow{}).
			Where("code = ?", code).
			Updates(map[string]any{"is_active": active, "updated_at": now.UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("code = ?", code).Take(&row).Error
	})
	if err != nil {
		return nil, translate("update link status", err)
	}
	return row.toDomain(), nil
}

// DeleteLinkCascade removes the clicks explicitly as well, so the cascade
// holds even where the foreign key is not enforced.
func (s *Store) DeleteLinkCascade(ctx context.Context, code string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row linkRow
		if err := tx.Select("id").Where("code = ?", code).Take(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("link_id = ?", row.ID).Delete(&clickRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&linkRow{}, "id = ?", row.ID).Error
	})
	return translate("delete link", err)
}

func (s *Store) ListLinks(ctx context.Context, filter domain.LinkFilter, page domain.PageRequest) (*domain.LinkPage, error) {
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&linkRow{})
		if filter.Active != nil {
			q = q.Where("is_active = ?", *filter.Active)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, translate("count links", err)
	}

	var rows []linkRow
	err := base().Order("created_at DESC").Order("code ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, translate("list links", err)
	}

	links := make([]*domain.Link, 0, len(rows))
	for i := range rows {
		links = append(links, rows[i].toDomain())
	}
	return &domain.LinkPage{Links: links, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *Store) InsertClickEvent(ctx context.Context, event *domain.ClickEvent) error {
	return translate("insert click", s.db.WithContext(ctx).Create(clickFromDomain(event)).Error)
}

func (s *Store) CountClicksForLink(ctx context.Context, linkID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&clickRow{}).Where("link_id = ?", linkID).Count(&n).Error
	if err != nil {
		return 0, translate("count clicks", err)
	}
	return n, nil
}

func (s *Store) ListClickEvents(ctx context.Context, linkID uuid.UUID, limit int) ([]*domain.ClickEvent, error) {
	var rows []clickRow
	q := s.db.WithContext(ctx).Where("link_id = ?", linkID).Order("clicked_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate("list clicks", err)
	}

	events := make([]*domain.ClickEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toDomain())
	}
	return events, nil
}

func (s *Store) AggregateClicksByDay(ctx context.Context, linkID uuid.UUID, since time.Time) ([]domain.DailyCount, error) {
	var rows []dayRow
	err := s.db.WithContext(ctx).Model(&clickRow{}).
		Select(s.dayExpr()+" AS day, COUNT(*) AS count").
		Where("link_id = ? AND clicked_at >= ?", linkID, since.UTC()).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("aggregate clicks", err)
	}

	days := make([]domain.DailyCount, 0, len(rows))
	for _, r := range rows {
		days = append(days, domain.DailyCount{Day: r.Day, Count: r.Count})
	}
	return days, nil
}

// dayExpr buckets clicked_at by UTC calendar day as YYYY-MM-DD.
func (s *Store) dayExpr() string {
	if s.driver == DriverSQLite {
		return "strftime('%Y-%m-%d', clicked_at)"
	}
	return "to_char(clicked_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
}

func (s *Store) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&linkRow{}).
		Where("expired = ? AND expires_at IS NOT NULL AND expires_at <= ?", false, now.UTC()).
		Updates(map[string]any{"expired": true, "updated_at": now.UTC()})
	if res.Error != nil {
		return 0, translate("mark expired", res.Error)
	}
	return res.RowsAffected, nil
}

// translate maps gorm errors onto the domain taxonomy.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrCodeConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		// The owning link was deleted concurrently.
		return domain.ErrNotFound
	default:
		return domain.Unavailable(op, err)
	}
}

var _ domain.LinkStore = (*Store)(nil)
