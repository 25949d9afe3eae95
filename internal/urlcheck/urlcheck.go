// Package urlcheck normalizes and vets the target URLs of links.
package urlcheck

import (
	"errors"
	"net/netip"
	"net/url"
	"strings"
)

var (
	ErrEmpty       = errors.New("URL is required")
	ErrFormat      = errors.New("invalid URL format")
	ErrScheme      = errors.New("URL must use http or https protocol")
	ErrPrivateHost = errors.New("private/local URLs are not allowed in production")
	ErrHostname    = errors.New("invalid hostname")
)

// Validate trims raw, adds https:// when no scheme is given and returns the
// normalized URL. Private and loopback hosts are rejected in production only.
func Validate(raw string, production bool) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmpty
	}

	normalized := trimmed
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(trimmed, "://") {
			return "", ErrScheme
		}
		normalized = "https://" + trimmed
	}

	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return "", ErrFormat
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrScheme
	}

	host := u.Hostname()
	if isLocal(host) {
		if production {
			return "", ErrPrivateHost
		}
		return normalized, nil
	}
	if len(host) < 3 {
		return "", ErrHostname
	}
	return normalized, nil
}

func isLocal(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

// Sanitize trims whitespace and strips angle brackets.
func Sanitize(raw string) string {
	return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(raw))
}

// IsShortURL reports whether target is one of our own /l/ tracked redirects
// on base.
func IsShortURL(target, base string) bool {
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	return t.Hostname() != "" && t.Hostname() == b.Hostname() && strings.HasPrefix(t.Path, "/l/")
}
