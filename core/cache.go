package core

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-key expiry.
// It backs short-lived state such as OTP challenges and device verification flags.
type Cache interface {
	// Get returns found=false when the key is missing or expired.
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	// Set stores val under key; a ttl <= 0 uses the store's default expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
