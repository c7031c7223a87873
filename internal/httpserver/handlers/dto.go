package handlers

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/shortener"
)

// NewValidator returns a validator reporting json field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type createLinkRequest struct {
	Destination string     `json:"destination" validate:"required,max=2048"`
	CustomCode  string     `json:"custom_code,omitempty" validate:"omitempty,max=32"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type linkResponse struct {
	Code         string        `json:"code"`
	ShortURL     string        `json:"short_url"`
	Destination  string        `json:"destination"`
	Status       domain.Status `json:"status"`
	IsActive     bool          `json:"is_active"`
	IsCustomCode bool          `json:"is_custom_code"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func toLinkResponse(baseURL string, l *domain.Link, status domain.Status) linkResponse {
	return linkResponse{
		Code:         l.Code,
		ShortURL:     baseURL + "/" + l.Code,
		Destination:  l.Destination,
		Status:       status,
		IsActive:     l.IsActive,
		IsCustomCode: l.IsCustomCode,
		ExpiresAt:    l.ExpiresAt,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

type listResponse struct {
	Links []linkResponse `json:"links"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type analyticsResponse struct {
	Link        linkResponse         `json:"link"`
	TotalClicks int64                `json:"total_clicks"`
	Recent      []*domain.ClickEvent `json:"recent_clicks"`
	Daily       []domain.DailyCount  `json:"daily,omitempty"`
}

// parseListQuery reads page, limit and is_active. Absent values stay zero.
func parseListQuery(q url.Values) (shortener.ListQuery, error) {
	var out shortener.ListQuery
	var err error

	if out.Page, err = optionalInt(q, "page"); err != nil {
		return out, err
	}
	if out.Limit, err = optionalInt(q, "limit"); err != nil {
		return out, err
	}
	if raw := q.Get("is_active"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return out, fmt.Errorf("%w: is_active must be a boolean", domain.ErrInvalidInput)
		}
		out.Active = &b
	}
	return out, nil
}

// parseAnalyticsQuery reads recent and days. An absent days takes def.
func parseAnalyticsQuery(q url.Values, defDays int) (shortener.AnalyticsQuery, error) {
	var out shortener.AnalyticsQuery
	var err error

	if out.RecentLimit, err = optionalInt(q, "recent"); err != nil {
		return out, err
	}
	out.Days = defDays
	if q.Has("days") {
		if out.Days, err = optionalInt(q, "days"); err != nil {
			return out, err
		}
	}
	return out, nil
}

func optionalInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
	}
	return n, nil
}
