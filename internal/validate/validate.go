// Package validate holds the pure target-format validators backing both the
// live bulk-entry classification and the pre-submission checks. All functions
// take one string and return a boolean; malformed input is never an error.
package validate

import (
	"net"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
)

// IsIP reports whether s is a syntactically valid IPv4 dotted-quad or IPv6
// colon-hex literal (full or compressed).
func IsIP(s string) bool {
	return net.ParseIP(s) != nil
}

// IsURL reports whether s parses as an absolute http(s) URL with a
// resolvable-looking host. Hostnames are run through IDNA lookup mapping so
// internationalized domains validate the same way they would resolve.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	_, err = idna.Lookup.ToASCII(host)
	return err == nil
}

// IsSubscriptionID reports whether s is a canonical 8-4-4-4-12 hexadecimal
// UUID. Braced, URN, and undashed forms are rejected.
func IsSubscriptionID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsPort reports whether s is a decimal integer in [1, 65535].
func IsPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
