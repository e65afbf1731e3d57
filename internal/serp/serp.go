// Package serp models search-result hits and locates a target domain
// among them.
package serp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NotFound is the Position reported when the target domain is absent from
// the result listing.
const NotFound Position = 0

// Position is a 1-based rank in a search-result listing, or NotFound.
type Position int

// Found reports whether p is an actual rank.
func (p Position) Found() bool { return p > 0 }

// InRange reports whether p is found and lies in [min, max].
func (p Position) InRange(min, max int) bool {
	return p.Found() && int(p) >= min && int(p) <= max
}

func (p Position) String() string {
	if !p.Found() {
		return "not_found"
	}
	return strconv.Itoa(int(p))
}

// MarshalJSON encodes a rank as a number and NotFound as "not_found".
func (p Position) MarshalJSON() ([]byte, error) {
	if !p.Found() {
		return []byte(`"not_found"`), nil
	}
	return []byte(strconv.Itoa(int(p))), nil
}

// UnmarshalJSON accepts a number, "not_found" or "N/A".
func (p *Position) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "not_found", "N/A", "":
			*p = NotFound
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("serp: invalid position %q", s)
		}
		*p = Position(n)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("serp: invalid position %s", data)
	}
	if n < 0 {
		n = 0
	}
	*p = Position(n)
	return nil
}

// Hit is one entry of a full top-results listing.
type Hit struct {
	Domain    string `json:"domain"`
	Subdomain string `json:"subdomain,omitempty"`
	URL       string `json:"url,omitempty"`
	Position  int    `json:"position"`
}

// NormalizeDomain lower-cases d and strips the scheme, a leading "www." and
// a trailing slash.
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, "/")
	return d
}

// Matches reports whether the normalized target is contained in the
// normalized hit domain. Subdomains and path-bearing entries match.
// An empty target never matches.
func Matches(hitDomain, target string) bool {
	t := NormalizeDomain(target)
	if t == "" {
		return false
	}
	return strings.Contains(NormalizeDomain(hitDomain), t)
}

// Locate scans hits in order and returns the first one whose domain
// contains target. Hits without a positive position are skipped.
func Locate(hits []Hit, target string) (Hit, bool) {
	t := NormalizeDomain(target)
	if t == "" {
		return Hit{}, false
	}
	for _, h := range hits {
		if h.Position <= 0 {
			continue
		}
		if strings.Contains(NormalizeDomain(h.Domain), t) {
			return h, true
		}
	}
	return Hit{}, false
}
