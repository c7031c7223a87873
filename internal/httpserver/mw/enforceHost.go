package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/hop/internal/logger"
)

// hostMatcher holds exact hosts and "*.example.com" suffixes, lowercased.
type hostMatcher struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostMatcher(patterns []string) *hostMatcher {
	m := &hostMatcher{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			m.suffixes = append(m.suffixes, p[1:]) // keep the leading dot
		default:
			m.exact[p] = struct{}{}
		}
	}
	return m
}

func (m *hostMatcher) empty() bool {
	return len(m.exact) == 0 && len(m.suffixes) == 0
}

// match tries host as sent, then without its port. A pattern carrying a
// port therefore only matches that port.
func (m *hostMatcher) match(host string) bool {
	host = strings.ToLower(host)
	candidates := []string{host}
	if h, _, err := net.SplitHostPort(host); err == nil {
		candidates = append(candidates, h)
	}

	for _, c := range candidates {
		if _, ok := m.exact[c]; ok {
			return true
		}
		for _, s := range m.suffixes {
			if strings.HasSuffix(c, s) {
				return true
			}
		}
	}
	return false
}

// EnforceHost rejects with 403 requests whose Host is not allowed.
// An empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	m := newHostMatcher(allowedHosts)
	if m.empty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.match(r.Host) {
				log.Debug("host rejected",
					logger.String("host", r.Host),
					logger.String("path", r.URL.Path))
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
