package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/secdesk/abuse-portal/internal/model"
)

const updatesPayload = `{"value":[
	{"ID":"2026-Aug","Alias":"2026-Aug","DocumentTitle":"August 2026 Security Updates","Severity":null,"InitialReleaseDate":"2026-08-12T07:00:00Z","CurrentReleaseDate":"2026-08-20T07:00:00Z","CvrfUrl":"https://example.com/cvrf/2026-Aug"},
	{"ID":{"Value":"2026-Jul"},"Alias":{"Value":"2026-Jul"},"DocumentTitle":{"Value":"July 2026 Security Updates"},"Severity":null,"InitialReleaseDate":"2026-07-08T07:00:00Z","CurrentReleaseDate":"2026-07-08T07:00:00Z","CvrfUrl":"https://example.com/cvrf/2026-Jul"},
	{"ID":"2025-Dec","Alias":"2025-Dec","DocumentTitle":"December 2025 Security Updates","Severity":null,"InitialReleaseDate":"2025-12-10T08:00:00Z","CurrentReleaseDate":"2025-12-10T08:00:00Z","CvrfUrl":"https://example.com/cvrf/2025-Dec"}
]}`

func newUpdatesServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/updates" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(updatesPayload))
	}))
}

func TestNormalizeCVE(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"CVE-2026-12345", "CVE-2026-12345", true},
		{"cve-2026-12345", "CVE-2026-12345", true},
		{"CVE-2026-1234", "CVE-2026-1234", true},
		{"CVE-2026-123", "", false},
		{"CVE-26-12345", "", false},
		{"not-a-cve", "", false},
		{"CVE-2026-12345; DROP", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCVE(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeCVE(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeCVRFID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"2026-Aug", "2026-Aug", true},
		{"2026-aug", "2026-Aug", true},
		{"2026-AUG", "2026-Aug", true},
		{"2026-August", "", false},
		{"2026-13", "", false},
		{"Aug-2026", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeCVRFID(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeCVRFID(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestListDefaultSortAndCaching(t *testing.T) {
	var hits atomic.Int32
	upstream := newUpdatesServer(t, &hits)
	defer upstream.Close()

	client := NewSecurityClient(upstream.URL)
	ctx := context.Background()

	updates, total, err := client.List(ctx, UpdateQuery{})
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if total != 3 || len(updates) != 3 {
		t.Fatalf("total = %d, len = %d, want 3/3", total, len(updates))
	}

	// Default order is release date descending.
	wantOrder := []string{"2026-Aug", "2026-Jul", "2025-Dec"}
	for i, u := range updates {
		if u.ID.String() != wantOrder[i] {
			t.Errorf("updates[%d].ID = %q, want %q", i, u.ID.String(), wantOrder[i])
		}
	}

	// FlexString handles both bare strings and {"Value": ...} wrappers.
	if updates[1].DocumentTitle.String() != "July 2026 Security Updates" {
		t.Errorf("wrapped title = %q", updates[1].DocumentTitle.String())
	}

	// Second query is served from cache.
	if _, _, err := client.List(ctx, UpdateQuery{}); err != nil {
		t.Fatalf("second List() = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1 (cached)", got)
	}
}

func TestListFilters(t *testing.T) {
	var hits atomic.Int32
	upstream := newUpdatesServer(t, &hits)
	defer upstream.Close()

	client := NewSecurityClient(upstream.URL)
	ctx := context.Background()

	tests := []struct {
		name    string
		q       UpdateQuery
		wantIDs []string
	}{
		{"year filter", UpdateQuery{Year: "2026"}, []string{"2026-Aug", "2026-Jul"}},
		{"id exact", UpdateQuery{ID: "2025-Dec"}, []string{"2025-Dec"}},
		{"search case insensitive", UpdateQuery{Search: "july"}, []string{"2026-Jul"}},
		{"search no match", UpdateQuery{Search: "nothing here"}, nil},
		{"ascending", UpdateQuery{Order: "asc"}, []string{"2025-Dec", "2026-Jul", "2026-Aug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := client.List(ctx, tt.q)
			if err != nil {
				t.Fatalf("List() = %v", err)
			}
			if total != len(tt.wantIDs) {
				t.Errorf("total = %d, want %d", total, len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID.String() != id {
					t.Errorf("result[%d] = %q, want %q", i, got[i].ID.String(), id)
				}
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	var hits atomic.Int32
	upstream := newUpdatesServer(t, &hits)
	defer upstream.Close()

	client := NewSecurityClient(upstream.URL)
	ctx := context.Background()

	got, total, err := client.List(ctx, UpdateQuery{Skip: 1, Top: 1})
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 (counted before pagination)", total)
	}
	if len(got) != 1 || got[0].ID.String() != "2026-Jul" {
		t.Errorf("page = %v, want single middle element", got)
	}

	// Skip past the end yields an empty page, not an error.
	got, total, err = client.List(ctx, UpdateQuery{Skip: 10})
	if err != nil || len(got) != 0 || total != 3 {
		t.Errorf("overshoot skip: got %d items, total %d, err %v", len(got), total, err)
	}
}

func TestUpdatesStaleFallback(t *testing.T) {
	var fail atomic.Bool
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(updatesPayload))
	}))
	defer upstream.Close()

	client := NewSecurityClient(upstream.URL)
	ctx := context.Background()

	if _, err := client.Updates(ctx); err != nil {
		t.Fatalf("initial Updates() = %v", err)
	}

	// Expire the cache and break the upstream; the stale list must survive.
	client.cache.Purge()
	fail.Store(true)

	updates, err := client.Updates(ctx)
	if err != nil {
		t.Fatalf("Updates() after upstream failure = %v, want stale data", err)
	}
	if len(updates) != 3 {
		t.Errorf("stale list has %d entries, want 3", len(updates))
	}
}

func TestByCVE(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/updates('CVE-2026-12345')":
			w.Write([]byte(`{"value":[{"ID":"2026-Aug","Alias":"CVE-2026-12345","DocumentTitle":"August 2026 Security Updates","InitialReleaseDate":"2026-08-12T07:00:00Z","CurrentReleaseDate":"2026-08-12T07:00:00Z","CvrfUrl":"https://example.com/cvrf/2026-Aug"}]}`))
		case "/updates('CVE-1999-0001')":
			w.Write([]byte(`{"value":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	client := NewSecurityClient(upstream.URL)
	ctx := context.Background()

	res, err := client.ByCVE(ctx, "CVE-2026-12345")
	if err != nil {
		t.Fatalf("ByCVE() = %v", err)
	}
	if res.CVE != "CVE-2026-12345" || res.TotalUpdates != 1 {
		t.Errorf("result = %+v", res)
	}

	if _, err := client.ByCVE(ctx, "CVE-1999-0001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty value set: err = %v, want ErrNotFound", err)
	}
}

func TestCVRF(t *testing.T) {
	doc := `{"DocumentTitle":"August 2026 Security Updates","Vulnerability":[]}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cvrf/2026-Aug":
			w.Write([]byte(doc))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	client := NewSecurityClient(upstream.URL)
	ctx := context.Background()

	raw, err := client.CVRF(ctx, "2026-Aug")
	if err != nil {
		t.Fatalf("CVRF() = %v", err)
	}
	if string(raw) != doc {
		t.Errorf("CVRF body = %s, want raw passthrough", raw)
	}

	if _, err := client.CVRF(ctx, "2024-Jan"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing document: err = %v, want ErrNotFound", err)
	}
}

func TestGetUpstreamStatusError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer upstream.Close()

	client := NewSecurityClient(upstream.URL)
	_, err := client.Updates(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusTeapot {
		t.Errorf("err = %v, want *StatusError with 418", err)
	}
}

func TestSecurityUpdateDecode(t *testing.T) {
	var u model.SecurityUpdate
	raw := `{"ID":{"Value":"2026-Aug"},"Alias":"2026-Aug","DocumentTitle":null,"Severity":"Critical","InitialReleaseDate":"2026-08-12T07:00:00Z"}`
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("Unmarshal = %v", err)
	}
	if u.ID.String() != "2026-Aug" || u.Alias.String() != "2026-Aug" {
		t.Errorf("ID/Alias = %q/%q", u.ID.String(), u.Alias.String())
	}
	if u.DocumentTitle.String() != "" {
		t.Errorf("null title decoded as %q, want empty", u.DocumentTitle.String())
	}
	if u.Severity.String() != "Critical" {
		t.Errorf("Severity = %q", u.Severity.String())
	}
}
