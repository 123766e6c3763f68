package logger

import (
	"net/url"
	"regexp"
	"strings"
)

var ipRegex = regexp.MustCompile(`\b(\d{1,3}\.){3}\d{1,3}\b`)

// RedactIP masks an IPv4 address for safe logging, keeping only the first
// octet so aggregate network-level debugging is still possible.
// "73.45.12.9" → "73.*.*.* "
func RedactIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "***"
	}
	return parts[0] + ".*.*.*"
}

// RedactURL strips query-string values (tracking params can carry click
// IDs and other identifying data) while keeping the host and path for
// debugging.
// "https://x.example.com/a?gclid=abc123" → "https://x.example.com/a?<redacted>"
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable-url>"
	}
	if u.RawQuery != "" {
		u.RawQuery = "<redacted>"
	}
	return u.String()
}
