package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/secdesk/abuse-portal/internal/gateway"
	"github.com/secdesk/abuse-portal/internal/validate"
)

// updatesCacheControl advertises the bulletin list's freshness to clients;
// the server-side cache refreshes on the same one-hour horizon.
const updatesCacheControl = "public, max-age=3600, stale-while-revalidate=60"

// HandleSecurityUpdates lists security updates with local filtering,
// sorting, and pagination. Both plain and $-prefixed OData-style parameter
// names are accepted.
func (s *Server) HandleSecurityUpdates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	param := func(names ...string) string {
		for _, n := range names {
			if v := q.Get(n); v != "" {
				return v
			}
		}
		return ""
	}

	query := gateway.UpdateQuery{
		Year:    param("year", "yearFilter"),
		CVE:     param("cve"),
		ID:      param("id"),
		Search:  param("search"),
		OrderBy: param("orderby", "$orderby"),
		Order:   param("order"),
	}
	query.Skip, _ = strconv.Atoi(param("skip", "$skip"))
	query.Top, _ = strconv.Atoi(param("top", "$top"))

	items, total, err := s.security.List(r.Context(), query)
	if err != nil {
		s.respondUpstreamError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", updatesCacheControl)
	respondJSON(w, http.StatusOK, map[string]any{
		"@odata.count": total,
		"value":        items,
		"totalCount":   total,
	})
}

// HandleSecurityCVE looks up the updates covering one CVE. Malformed
// identifiers are rejected before any upstream call.
func (s *Server) HandleSecurityCVE(w http.ResponseWriter, r *http.Request) {
	cve, ok := gateway.NormalizeCVE(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "malformed CVE identifier")
		return
	}

	result, err := s.security.ByCVE(r.Context(), cve)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{
				"error": "no security updates found",
				"cve":   cve,
			})
			return
		}
		s.respondUpstreamError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleSecurityCVRF fetches one raw CVRF document by YYYY-MMM identifier.
func (s *Server) HandleSecurityCVRF(w http.ResponseWriter, r *http.Request) {
	id, ok := gateway.NormalizeCVRFID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "malformed CVRF document identifier")
		return
	}

	doc, err := s.security.CVRF(r.Context(), id)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{
				"error": "no CVRF document found",
				"id":    id,
			})
			return
		}
		s.respondUpstreamError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// HandleEnrichIP returns network ownership data for a prospective IP target.
func (s *Server) HandleEnrichIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if !validate.IsIP(ip) {
		respondError(w, http.StatusBadRequest, "malformed IP address")
		return
	}
	if s.enricher == nil {
		respondError(w, http.StatusNotImplemented, "enrichment not configured")
		return
	}

	result, err := s.enricher.Lookup(r.Context(), ip)
	if err != nil {
		s.respondUpstreamError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
