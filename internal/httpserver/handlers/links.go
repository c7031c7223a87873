package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hop/internal/domain"
	"github.com/MrSnakeDoc/hop/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hop/internal/shortener"
	"github.com/MrSnakeDoc/hop/internal/utils"
)

const maxBodyBytes = 64 << 10

func CreateLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLinkRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", fmt.Sprintf("malformed JSON body: %v", err))
			return
		}
		if err := d.Validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", validationMessage(err))
			return
		}

		link, err := d.Service.Create(r.Context(), shortener.CreateRequest{
			Destination: req.Destination,
			CustomCode:  req.CustomCode,
			ExpiresAt:   req.ExpiresAt,
			ClientID:    utils.ClientIP(r, d.TrustProxy),
		})
		if err != nil {
			writeDomainError(w, d, err)
			return
		}

		w.Header().Set("Location", "/api/links/"+link.Code)
		writeJSON(w, http.StatusCreated, toLinkResponse(d.BaseURL, link, d.Service.Status(link)))
	}
}

func ListLinks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseListQuery(r.URL.Query())
		if err != nil {
			writeDomainError(w, d, err)
			return
		}

		page, err := d.Service.List(r.Context(), q)
		if err != nil {
			writeDomainError(w, d, err)
			return
		}

		resp := listResponse{
			Links: make([]linkResponse, 0, len(page.Links)),
			Total: page.Total,
			Page:  page.Page,
			Limit: page.Limit,
		}
		for _, l := range page.Links {
			resp.Links = append(resp.Links, toLinkResponse(d.BaseURL, l, d.Service.Status(l)))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func GetLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := d.Service.Get(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeDomainError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, toLinkResponse(d.BaseURL, link, d.Service.Status(link)))
	}
}

func DisableLink(d deps.Deps) http.HandlerFunc {
	return setLinkState(d, d.Service.Disable)
}

func EnableLink(d deps.Deps) http.HandlerFunc {
	return setLinkState(d, d.Service.Enable)
}

type lifecycleOp func(ctx context.Context, code string) (*domain.Link, error)

func setLinkState(d deps.Deps, op lifecycleOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := op(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeDomainError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, toLinkResponse(d.BaseURL, link, d.Service.Status(link)))
	}
}

func DeleteLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Service.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
			writeDomainError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func LinkAnalytics(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseAnalyticsQuery(r.URL.Query(), d.AnalyticsDays)
		if err != nil {
			writeDomainError(w, d, err)
			return
		}

		a, err := d.Service.Analytics(r.Context(), chi.URLParam(r, "code"), q)
		if err != nil {
			writeDomainError(w, d, err)
			return
		}

		writeJSON(w, http.StatusOK, analyticsResponse{
			Link:        toLinkResponse(d.BaseURL, a.Link, a.Status),
			TotalClicks: a.TotalClicks,
			Recent:      a.Recent,
			Daily:       a.Daily,
		})
	}
}
