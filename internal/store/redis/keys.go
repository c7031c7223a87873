package redis

const (
	// KeyPrefixLink is the prefix for cached links, keyed by short code
	KeyPrefixLink = "hop:link:"
	// KeyPrefixRateLimit is the prefix for rate limiter windows
	KeyPrefixRateLimit = "hop:ratelimit:"
)

// LinkKey returns the Redis key for a cached link by code
func LinkKey(code string) string {
	return KeyPrefixLink + code
}

// RateLimitKey returns the Redis key for a client's rate limit window
func RateLimitKey(client string) string {
	return KeyPrefixRateLimit + client
}
