// Package enrich derives geography and device shape from a raw visitor IP
// and User-Agent string, and classifies referrer hostnames into the
// search/social/direct/other taxonomy. Every function here is pure: same
// input always yields the same output, so re-enriching an already-enriched
// row (e.g. during a replayed ingest) is a no-op on the result.
package enrich

import (
	"net"
	"net/url"
	"strings"

	"microanalytics/internal/models"
)

// Geo is the location enrichment bundle for one visitor IP.
type Geo struct {
	Country string
	Region  string
	City    string
}

// ipRange is one row of the embedded IP-to-geo table: a CIDR block and the
// location it's known to resolve to. This is intentionally coarse — a
// handful of well-known cloud/edge ranges plus RFC1918 private space — not
// a full MaxMind-style database, which nothing in this module links against.
type ipRange struct {
	block   *net.IPNet
	geo     Geo
}

var ipTable = buildIPTable()

func buildIPTable() []ipRange {
	rows := []struct {
		cidr    string
		country string
		region  string
		city    string
	}{
		{"10.0.0.0/8", "", "", "private"},
		{"172.16.0.0/12", "", "", "private"},
		{"192.168.0.0/16", "", "", "private"},
		{"127.0.0.0/8", "", "", "localhost"},
		{"::1/128", "", "", "localhost"},
		// A handful of well-known public edge ranges, coarse country only.
		{"13.32.0.0/15", "US", "", ""},   // CloudFront (US POPs)
		{"104.16.0.0/13", "US", "", ""},  // Cloudflare
		{"151.101.0.0/16", "US", "", ""}, // Fastly
		{"35.190.0.0/17", "US", "", ""},  // Google Cloud
	}
	table := make([]ipRange, 0, len(rows))
	for _, r := range rows {
		_, block, err := net.ParseCIDR(r.cidr)
		if err != nil {
			continue
		}
		table = append(table, ipRange{block: block, geo: Geo{Country: r.country, Region: r.region, City: r.city}})
	}
	return table
}

// GeoOf resolves a visitor IP to a coarse Geo. Unknown/unparseable IPs
// resolve to the zero Geo, never an error: geography is best-effort
// enrichment, not a validated input.
func GeoOf(ip string) Geo {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return Geo{}
	}
	for _, row := range ipTable {
		if row.block.Contains(parsed) {
			return row.geo
		}
	}
	return Geo{}
}

// Device is the device-shape enrichment bundle for one User-Agent string.
type Device struct {
	DeviceType string // "mobile" | "tablet" | "desktop" | "bot" | "unknown"
	Browser    string
	OS         string
}

// DeviceOf parses a User-Agent string into a coarse Device. It recognizes
// the common browser/OS tokens by substring match. An empty User-Agent
// yields "unknown" in every field; a non-empty one with no bot, tablet or
// mobile token counts as a "desktop" device.
func DeviceOf(userAgent string) Device {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return Device{DeviceType: "unknown", Browser: "unknown", OS: "unknown"}
	}

	return Device{
		DeviceType: deviceTypeOf(ua),
		Browser:    browserOf(ua),
		OS:         osOf(ua),
	}
}

func deviceTypeOf(ua string) string {
	switch {
	case strings.Contains(ua, "bot") || strings.Contains(ua, "spider") || strings.Contains(ua, "crawler"):
		return "bot"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

func browserOf(ua string) string {
	switch {
	case strings.Contains(ua, "edg/"):
		return "edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "firefox"):
		return "firefox"
	case strings.Contains(ua, "crios") || strings.Contains(ua, "chrome"):
		return "chrome"
	case strings.Contains(ua, "safari"):
		return "safari"
	default:
		return "unknown"
	}
}

func osOf(ua string) string {
	switch {
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ios"):
		return "ios"
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "windows"):
		return "windows"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macos"
	case strings.Contains(ua, "linux"):
		return "linux"
	default:
		return "unknown"
	}
}

// socialHosts and searchHosts are the hostname suffixes that classify a
// referrer as social/search rather than generic "other" traffic.
var (
	socialHosts = []string{"facebook.com", "twitter.com", "x.com", "instagram.com", "linkedin.com", "tiktok.com", "reddit.com", "t.co"}
	searchHosts = []string{"google.", "bing.com", "duckduckgo.com", "yahoo.", "baidu.com", "yandex."}
)

// ClassifyReferrer buckets a raw referrer value — a full URL, a bare
// hostname, or "" — into the search/social/direct/other taxonomy.
func ClassifyReferrer(referrer string) models.ReferrerType {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" || strings.EqualFold(referrer, "direct") {
		return models.ReferrerDirect
	}

	host := referrer
	if u, err := url.Parse(referrer); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(strings.TrimPrefix(host, "www."))

	for _, h := range socialHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return models.ReferrerSocial
		}
	}
	for _, h := range searchHosts {
		if strings.Contains(host, h) {
			return models.ReferrerSearch
		}
	}
	return models.ReferrerOther
}
