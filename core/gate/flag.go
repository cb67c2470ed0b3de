package gate

import (
	"context"
	"time"

	"github.com/trezcool/ratiba/core"
)

const flagKeyPrefix = "otp_verified:"

// VerificationFlag records, for one device session, which user satisfied the second factor.
type VerificationFlag interface {
	// Get is true only when userID is the user the flag was set for.
	Get(ctx context.Context, userID string) (bool, error)
	Set(ctx context.Context, userID string) error
	Clear(ctx context.Context) error
}

type cacheFlag struct {
	cache core.Cache
	key   string
	ttl   time.Duration
}

var _ VerificationFlag = (*cacheFlag)(nil)

// NewVerificationFlag returns the flag of deviceID kept in cache. It expires after ttl,
// so an idle device has to verify again.
func NewVerificationFlag(cache core.Cache, deviceID string, ttl time.Duration) VerificationFlag {
	return &cacheFlag{cache: cache, key: flagKeyPrefix + deviceID, ttl: ttl}
}

func (f *cacheFlag) Get(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	val, found, err := f.cache.Get(ctx, f.key)
	if err != nil || !found {
		return false, err
	}
	return string(val) == userID, nil
}

func (f *cacheFlag) Set(ctx context.Context, userID string) error {
	return f.cache.Set(ctx, f.key, []byte(userID), f.ttl)
}

func (f *cacheFlag) Clear(ctx context.Context) error {
	return f.cache.Delete(ctx, f.key)
}
