package redis

import "fmt"

const (
	// KeyPrefixSession is the prefix for session snapshot keys
	KeyPrefixSession = "seva:session:"
	// KeyAllSessions is the key for the set of all session IDs
	KeyAllSessions = "seva:sessions:all"
	// KeyPrefixSupplier is the prefix for supplier keys
	KeyPrefixSupplier = "seva:supplier:"
	// KeyAllSuppliers is the key for the set of all supplier IDs
	KeyAllSuppliers = "seva:suppliers:all"
	// KeyUsage is the hash of supplier ID -> redirect count
	KeyUsage = "seva:usage"
	// KeyPrefixCache is the prefix for cached redirect resolutions
	KeyPrefixCache = "seva:cache:"
)

// SessionKey returns the Redis key for a session snapshot
func SessionKey(id string) string {
	return KeyPrefixSession + id
}

// SupplierKey returns the Redis key for a supplier
func SupplierKey(id string) string {
	return KeyPrefixSupplier + id
}

// CacheKey returns the Redis key for a cached resolution
func CacheKey(query string) string {
	return KeyPrefixCache + query
}

// ExtractSessionID extracts the session ID from a Redis key
func ExtractSessionID(key string) (string, error) {
	if len(key) <= len(KeyPrefixSession) || key[:len(KeyPrefixSession)] != KeyPrefixSession {
		return "", fmt.Errorf("invalid session key: %s", key)
	}
	return key[len(KeyPrefixSession):], nil
}
