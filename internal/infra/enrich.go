// Package infra enriches IP targets with network ownership data so a
// reporter can see who operates an address before filing against it.
package infra

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ammario/ipisp/v2"
	"github.com/openrdap/rdap"
)

// RDAPClient abstracts RDAP lookups for testing.
type RDAPClient interface {
	LookupIP(ctx context.Context, ip string) (*rdap.IPNetwork, error)
}

// defaultRDAPClient uses the openrdap library.
type defaultRDAPClient struct{}

func (c *defaultRDAPClient) LookupIP(ctx context.Context, ip string) (*rdap.IPNetwork, error) {
	client := &rdap.Client{}
	req := &rdap.Request{
		Type:  rdap.IPRequest,
		Query: ip,
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	ipNet, ok := resp.Object.(*rdap.IPNetwork)
	if !ok {
		return nil, fmt.Errorf("rdap: unexpected response type for IP %s", ip)
	}
	return ipNet, nil
}

// NewRDAPClient returns an RDAPClient backed by the standard RDAP bootstrap.
func NewRDAPClient() RDAPClient {
	return &defaultRDAPClient{}
}

// ASNClient abstracts IP-to-ASN lookups for testing.
type ASNClient interface {
	LookupIP(ctx context.Context, ip net.IP) (*ipisp.Response, error)
}

// cymruClient wraps ipisp for Team Cymru DNS lookups.
type cymruClient struct{}

func (c *cymruClient) LookupIP(ctx context.Context, ip net.IP) (*ipisp.Response, error) {
	return ipisp.LookupIP(ctx, ip)
}

// NewASNClient returns an ASNClient backed by Team Cymru DNS.
func NewASNClient() ASNClient {
	return &cymruClient{}
}

// Result holds the enrichment data for one IP target.
type Result struct {
	IP           string `json:"ip"`
	ASN          int    `json:"asn"`
	ASNName      string `json:"asnName"`
	BGPPrefix    string `json:"bgpPrefix,omitempty"`
	Country      string `json:"country,omitempty"`
	AbuseContact string `json:"abuseContact,omitempty"`
}

// Enricher combines RDAP and ASN lookups with a one-hour cache; repeated
// lookups against the same address must not amplify traffic toward the
// external services.
type Enricher struct {
	rdap  RDAPClient
	asn   ASNClient
	cache *enrichCache
}

// NewEnricher creates an enricher with caching enabled.
func NewEnricher(rdapClient RDAPClient, asnClient ASNClient) *Enricher {
	return &Enricher{
		rdap:  rdapClient,
		asn:   asnClient,
		cache: newEnrichCache(1 * time.Hour),
	}
}

// Lookup resolves ASN info and the RDAP abuse contact for an IP. A failed
// RDAP lookup degrades to a result without a contact rather than failing the
// whole enrichment.
func (e *Enricher) Lookup(ctx context.Context, ip string) (*Result, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, &net.ParseError{Type: "IP address", Text: ip}
	}

	if cached, ok := e.cache.Get(ip); ok {
		return cached, nil
	}

	resp, err := e.asn.LookupIP(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("asn lookup for %s: %w", ip, err)
	}

	result := &Result{
		IP:      ip,
		ASN:     int(resp.ASN),
		ASNName: resp.ISPName,
		Country: resp.Country,
	}
	if resp.Range != nil {
		result.BGPPrefix = resp.Range.String()
	}

	if ipNet, err := e.rdap.LookupIP(ctx, ip); err == nil {
		result.AbuseContact = extractAbuseContact(ipNet.Entities)
	}

	e.cache.Set(ip, result)
	return result, nil
}

// extractAbuseContact walks the RDAP entity tree looking for an abuse role
// with an email in the vCard.
func extractAbuseContact(entities []rdap.Entity) string {
	for _, entity := range entities {
		for _, role := range entity.Roles {
			if strings.EqualFold(role, "abuse") {
				if entity.VCard != nil {
					if email := entity.VCard.Email(); email != "" {
						return email
					}
				}
			}
		}
		if email := extractAbuseContact(entity.Entities); email != "" {
			return email
		}
	}
	return ""
}
