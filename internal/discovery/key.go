package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// CanonicalKey derives the identity key of a candidate. The source's own
// listing ID wins; otherwise the canonical URL is used; otherwise a hash of
// title, company and location.
func CanonicalKey(source string, c Candidate) string {
	if id := strings.TrimSpace(c.ExternalID); id != "" {
		return strings.ToLower(source) + ":" + id
	}
	if u := CanonicalURL(c.URL); u != "" {
		return "url:" + u
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join([]string{
		strings.TrimSpace(c.Title),
		strings.TrimSpace(c.Company),
		strings.TrimSpace(c.Location),
	}, "|"))))
	return "hash:" + hex.EncodeToString(sum[:16])
}

// CanonicalURL normalizes a listing URL so tracking parameters and casing do
// not produce distinct keys for the same listing.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if isTrackingParam(strings.ToLower(k)) {
			q.Del(k)
		}
	}

	// LinkedIn search URLs carry the listing in currentJobId only.
	if strings.Contains(u.Host, "linkedin.com") {
		keep := url.Values{}
		if v := q.Get("currentJobId"); v != "" {
			keep.Set("currentJobId", v)
		}
		q = keep
	}

	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isTrackingParam(k string) bool {
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	switch k {
	case "gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "mkt_tok":
		return true
	}
	return false
}
