package parser

import (
	"regexp"
	"strings"
)

var ipv4Shape = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// Host extracts the lower-cased host portion of a raw URL value: scheme and
// "www." prefix stripped, cut at the first path separator, query, fragment,
// or port.
func Host(raw string) string {
	host := strings.TrimSpace(raw)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

// SplitDomain derives (domain, tld) from a host. Dotted-quad IPv4 hosts keep
// the full address as the domain with no top-level label. For names, the
// top-level label is the last dot-separated segment and the domain is the
// last two segments joined. This two-label rule is a deliberate
// simplification with no public-suffix-list awareness, kept for
// compatibility with historical data.
func SplitDomain(host string) (domain, tld string) {
	if host == "" {
		return "", ""
	}
	if ipv4Shape.MatchString(host) {
		return host, ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host, ""
	}
	return strings.Join(labels[len(labels)-2:], "."), labels[len(labels)-1]
}
