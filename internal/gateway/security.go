package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/secdesk/abuse-portal/internal/metrics"
	"github.com/secdesk/abuse-portal/internal/model"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	cvePattern  = regexp.MustCompile(`(?i)^CVE-\d{4}-\d{4,}$`)
	cvrfPattern = regexp.MustCompile(`(?i)^\d{4}-(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)$`)
)

// NormalizeCVE validates a CVE identifier and returns it uppercased, or
// false for malformed input. Malformed identifiers never reach upstream.
func NormalizeCVE(id string) (string, bool) {
	if !cvePattern.MatchString(id) {
		return "", false
	}
	return strings.ToUpper(id), true
}

// NormalizeCVRFID validates a YYYY-MMM document identifier and returns it
// with the month in canonical Xxx casing.
func NormalizeCVRFID(id string) (string, bool) {
	if !cvrfPattern.MatchString(id) {
		return "", false
	}
	year, month := id[:4], id[5:]
	return year + "-" + strings.ToUpper(month[:1]) + strings.ToLower(month[1:]), true
}

// UpdateQuery describes the local filter/sort/paginate applied to the full
// upstream update list. The upstream API does not support these parameters,
// so they are evaluated here.
type UpdateQuery struct {
	Year    string
	CVE     string
	ID      string
	Search  string
	OrderBy string
	Order   string
	Skip    int
	Top     int
}

// CVEResult is the response shape for a CVE lookup.
type CVEResult struct {
	CVE          string                 `json:"cve"`
	Updates      []model.SecurityUpdate `json:"updates"`
	TotalUpdates int                    `json:"totalUpdates"`
}

// SecurityClient browses the upstream security-bulletin API. The full update
// list is cached for an hour; concurrent refreshes collapse through
// singleflight, and a client-side rate limiter keeps revalidation traffic
// polite toward the upstream.
type SecurityClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cache   *ttlCache[string, []model.SecurityUpdate]
	group   singleflight.Group

	mu   sync.Mutex
	last []model.SecurityUpdate // stale fallback when a refresh fails
}

// NewSecurityClient creates a client for the given bulletin API base URL.
func NewSecurityClient(baseURL string) *SecurityClient {
	return &SecurityClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: defaultUpstreamTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		cache:   newTTLCache[string, []model.SecurityUpdate](defaultCacheTTL),
	}
}

const updatesCacheKey = "updates"

// Updates returns the full upstream update list, served from cache when
// fresh. On a failed refresh the last known-good list is served stale rather
// than failing the read side outright.
func (c *SecurityClient) Updates(ctx context.Context) ([]model.SecurityUpdate, error) {
	if cached, ok := c.cache.Get(updatesCacheKey); ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(updatesCacheKey, func() (interface{}, error) {
		updates, err := c.fetchUpdates(ctx)
		if err != nil {
			c.mu.Lock()
			stale := c.last
			c.mu.Unlock()
			if stale != nil {
				metrics.BulletinRefreshTotal.WithLabelValues("stale").Inc()
				return stale, nil
			}
			metrics.BulletinRefreshTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.BulletinRefreshTotal.WithLabelValues("success").Inc()
		c.cache.Set(updatesCacheKey, updates)
		c.mu.Lock()
		c.last = updates
		c.mu.Unlock()
		return updates, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.SecurityUpdate), nil
}

func (c *SecurityClient) fetchUpdates(ctx context.Context) ([]model.SecurityUpdate, error) {
	body, err := c.get(ctx, c.baseURL+"/updates")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Value []model.SecurityUpdate `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	return payload.Value, nil
}

// List applies the query's filters, sorting, and pagination over the cached
// update list. The returned total counts matches before pagination.
func (c *SecurityClient) List(ctx context.Context, q UpdateQuery) ([]model.SecurityUpdate, int, error) {
	updates, err := c.Updates(ctx)
	if err != nil {
		return nil, 0, err
	}

	filtered := filterUpdates(updates, q)
	sortUpdates(filtered, q.OrderBy, q.Order)
	total := len(filtered)

	if q.Skip > 0 {
		if q.Skip >= len(filtered) {
			filtered = nil
		} else {
			filtered = filtered[q.Skip:]
		}
	}
	if q.Top > 0 && q.Top < len(filtered) {
		filtered = filtered[:q.Top]
	}
	return filtered, total, nil
}

// ByCVE looks up the updates that document a CVE. The identifier must
// already be normalized via NormalizeCVE.
func (c *SecurityClient) ByCVE(ctx context.Context, cve string) (*CVEResult, error) {
	body, err := c.get(ctx, c.baseURL+"/updates('"+url.PathEscape(cve)+"')")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Value []model.SecurityUpdate `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding cve lookup: %w", err)
	}
	if len(payload.Value) == 0 {
		return nil, ErrNotFound
	}
	return &CVEResult{
		CVE:          cve,
		Updates:      payload.Value,
		TotalUpdates: len(payload.Value),
	}, nil
}

// CVRF fetches one raw CVRF document. The identifier must already be
// normalized via NormalizeCVRFID.
func (c *SecurityClient) CVRF(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, c.baseURL+"/cvrf/"+url.PathEscape(id))
}

func (c *SecurityClient) get(ctx context.Context, u string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return json.RawMessage(body), nil
}

func filterUpdates(updates []model.SecurityUpdate, q UpdateQuery) []model.SecurityUpdate {
	out := make([]model.SecurityUpdate, 0, len(updates))
	search := strings.ToLower(q.Search)
	cve := strings.ToLower(q.CVE)
	for _, u := range updates {
		if q.Year != "" && !strings.HasPrefix(u.InitialReleaseDate, q.Year) {
			continue
		}
		if q.ID != "" && u.ID.String() != q.ID {
			continue
		}
		if cve != "" && !strings.Contains(strings.ToLower(u.Alias.String()), cve) &&
			!strings.Contains(strings.ToLower(u.DocumentTitle.String()), cve) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.DocumentTitle.String()), search) &&
			!strings.Contains(strings.ToLower(u.ID.String()), search) &&
			!strings.Contains(strings.ToLower(u.Alias.String()), search) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// sortUpdates orders updates in place. The default is release date
// descending, matching the portal's listing.
func sortUpdates(updates []model.SecurityUpdate, orderBy, order string) {
	if orderBy == "" {
		orderBy = "releaseDate"
	}
	desc := order != "asc"
	if order == "" {
		desc = true
	}

	less := func(a, b model.SecurityUpdate) bool {
		switch orderBy {
		case "id":
			return a.ID.String() < b.ID.String()
		case "title":
			return strings.ToLower(a.DocumentTitle.String()) < strings.ToLower(b.DocumentTitle.String())
		case "currentReleaseDate":
			return a.CurrentReleaseDate < b.CurrentReleaseDate
		case "severity":
			return a.Severity.String() < b.Severity.String()
		default: // releaseDate
			return a.InitialReleaseDate < b.InitialReleaseDate
		}
	}

	sort.SliceStable(updates, func(i, j int) bool {
		if desc {
			return less(updates[j], updates[i])
		}
		return less(updates[i], updates[j])
	})
}
