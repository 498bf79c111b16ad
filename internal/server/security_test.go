package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/secdesk/abuse-portal/internal/gateway"
	"github.com/secdesk/abuse-portal/internal/model"
)

func bulletinStub() *stubBrowser {
	return &stubBrowser{
		updates: []model.SecurityUpdate{
			{
				ID:                 "2026-Aug",
				Alias:              "2026-Aug",
				DocumentTitle:      "August 2026 Security Updates",
				InitialReleaseDate: "2026-08-12T07:00:00Z",
				CurrentReleaseDate: "2026-08-20T07:00:00Z",
				CvrfURL:            "https://example.com/cvrf/2026-Aug",
			},
		},
	}
}

func TestSecurityUpdatesList(t *testing.T) {
	srv := newTestServer(t, nil, bulletinStub())

	rec := doJSON(t, srv, http.MethodGet, "/api/security/updates?year=2026", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "max-age=3600") {
		t.Errorf("Cache-Control = %q", got)
	}

	var payload struct {
		ODataCount int                    `json:"@odata.count"`
		Value      []model.SecurityUpdate `json:"value"`
		TotalCount int                    `json:"totalCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ODataCount != 1 || payload.TotalCount != 1 || len(payload.Value) != 1 {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Value[0].ID.String() != "2026-Aug" {
		t.Errorf("value[0].ID = %q", payload.Value[0].ID.String())
	}
}

func TestSecurityUpdatesUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, nil, &stubBrowser{listErr: &gateway.StatusError{Code: http.StatusBadGateway}})

	rec := doJSON(t, srv, http.MethodGet, "/api/security/updates", "", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestSecurityCVE(t *testing.T) {
	srv := newTestServer(t, nil, bulletinStub())

	rec := doJSON(t, srv, http.MethodGet, "/api/security/cve/cve-2026-12345", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	// The identifier is normalized before the lookup.
	if !strings.Contains(rec.Body.String(), "CVE-2026-12345") {
		t.Errorf("body = %s, want uppercased CVE echoed", rec.Body)
	}
}

func TestSecurityCVEMalformed(t *testing.T) {
	srv := newTestServer(t, nil, bulletinStub())

	rec := doJSON(t, srv, http.MethodGet, "/api/security/cve/not-a-cve", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSecurityCVENotFound(t *testing.T) {
	srv := newTestServer(t, nil, &stubBrowser{cveErr: gateway.ErrNotFound})

	rec := doJSON(t, srv, http.MethodGet, "/api/security/cve/CVE-1999-0001", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CVE-1999-0001") {
		t.Errorf("body = %s, want the CVE named", rec.Body)
	}
}

func TestSecurityCVRF(t *testing.T) {
	srv := newTestServer(t, nil, bulletinStub())

	rec := doJSON(t, srv, http.MethodGet, "/api/security/cvrf/2026-aug", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	// Normalized to Xxx month casing before the fetch; stub echoes the ID.
	if !strings.Contains(rec.Body.String(), "2026-Aug") {
		t.Errorf("body = %s", rec.Body)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/security/cvrf/2026-August", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want 400", rec.Code)
	}
}

func TestSecurityCVRFNotFound(t *testing.T) {
	srv := newTestServer(t, nil, &stubBrowser{cvrfErr: gateway.ErrNotFound})

	rec := doJSON(t, srv, http.MethodGet, "/api/security/cvrf/2024-Jan", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestEnrichIP(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/enrich/ip/not-an-ip", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed ip: status = %d, want 400", rec.Code)
	}

	// No enricher configured in the test server.
	rec = doJSON(t, srv, http.MethodGet, "/api/enrich/ip/203.0.113.5", "", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("unconfigured: status = %d, want 501", rec.Code)
	}
}
