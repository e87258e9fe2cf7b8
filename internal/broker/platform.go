package broker

import (
	"net/url"
	"strings"
)

const (
	PlatformUnknown        = "unknown"
	DefaultCulturalContext = "western_urban"
)

var platformHosts = []struct {
	match    string
	platform string
}{
	{"tinder.com", "tinder"},
	{"bumble.com", "bumble"},
	{"hinge.co", "hinge"},
	{"match.com", "match"},
	{"okcupid.com", "okcupid"},
	{"pof.com", "pof"},
	{"eharmony.com", "eharmony"},
	{"zoosk.com", "zoosk"},
	{"badoo.com", "badoo"},
	{"coffee", "coffee_meets_bagel"},
}

// DetectPlatform maps a hostname or URL to a dating-app id, or "unknown".
func DetectPlatform(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil {
			host = u.Hostname()
		}
	}
	if host == "" {
		return PlatformUnknown
	}
	for _, p := range platformHosts {
		if strings.Contains(host, p.match) {
			return p.platform
		}
	}
	return PlatformUnknown
}
