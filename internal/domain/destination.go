package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxDestinationLength bounds stored destinations.
const MaxDestinationLength = 2048

// NormalizeDestination trims and validates a destination URL and returns the
// value to persist.
// Examples:
//   - "https://example.com/page" -> ok
//   - "ftp://example.com"       -> ErrInvalidDestination
//   - "/relative/path"          -> ErrInvalidDestination
func NormalizeDestination(raw string) (string, error) {
	dest := strings.TrimSpace(raw)
	if dest == "" {
		return "", fmt.Errorf("%w: must not be empty", ErrInvalidDestination)
	}
	if len(dest) > MaxDestinationLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidDestination, MaxDestinationLength)
	}

	u, err := url.Parse(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: must be an absolute URL", ErrInvalidDestination)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: scheme %q not allowed", ErrInvalidDestination, u.Scheme)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidDestination)
	}

	return dest, nil
}
