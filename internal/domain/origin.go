package domain

import (
	"net"
	"net/url"
	"strings"
)

// origin returns the scheme://host[:port] of a URL. Default ports are
// dropped so https://a.example:443 and https://a.example compare equal.
// It reports false for anything without both a scheme and a host.
func origin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}

	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	return scheme + "://" + host, true
}

// OriginsMatch reports whether two URLs share the same origin. Path, query
// and fragment are ignored. Malformed input never matches.
func OriginsMatch(a, b string) bool {
	oa, ok := origin(a)
	if !ok {
		return false
	}
	ob, ok := origin(b)
	if !ok {
		return false
	}
	return oa == ob
}

// ResolveTarget returns the first target in the registry whose UID shares an
// origin with identifier. Targets with a malformed UID are skipped.
func ResolveTarget(targets []Target, identifier string) (Target, bool) {
	for _, t := range targets {
		if OriginsMatch(t.Info().UID, identifier) {
			return t, true
		}
	}
	return nil, false
}

// AlreadySatisfied reports whether any syndicated URL shares an origin with
// identifier. A forced run is never satisfied.
func AlreadySatisfied(syndicated []string, identifier string, forced bool) bool {
	if forced {
		return false
	}
	for _, u := range syndicated {
		if OriginsMatch(u, identifier) {
			return true
		}
	}
	return false
}
