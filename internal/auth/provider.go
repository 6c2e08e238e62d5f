package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// lookupTimeout bounds one shared provider call. The call is detached from
// the caller that started it so waiters are not cancelled with it.
const lookupTimeout = 5 * time.Second

// ErrUnknownUser means the provider knows no active user for the id.
var ErrUnknownUser = errors.New("auth: unknown user")

// Provider is the identity provider boundary. It returns the identity and
// profile of a user, a nil profile when none is recorded, and
// ErrUnknownUser when the user does not exist or is disabled.
type Provider interface {
	Lookup(ctx context.Context, userID int64) (*Identity, *Profile, error)
}

type lookupResult struct {
	identity *Identity
	profile  *Profile
}

// CachedProvider memoizes lookups for a short TTL and collapses concurrent
// lookups of the same user into one call.
type CachedProvider struct {
	next  Provider
	cache *expirable.LRU[int64, lookupResult]
	group singleflight.Group
}

// NewCachedProvider wraps next with an LRU of size entries.
func NewCachedProvider(next Provider, size int, ttl time.Duration) *CachedProvider {
	if size <= 0 {
		size = 1024
	}
	return &CachedProvider{
		next:  next,
		cache: expirable.NewLRU[int64, lookupResult](size, nil, ttl),
	}
}

// Lookup implements Provider.
func (p *CachedProvider) Lookup(ctx context.Context, userID int64) (*Identity, *Profile, error) {
	if hit, ok := p.cache.Get(userID); ok {
		return hit.identity, hit.profile, nil
	}
	ch := p.group.DoChan(strconv.FormatInt(userID, 10), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		identity, profile, err := p.next.Lookup(lookupCtx, userID)
		if err != nil {
			return nil, err
		}
		res := lookupResult{identity: identity, profile: profile}
		p.cache.Add(userID, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		hit := res.Val.(lookupResult)
		return hit.identity, hit.profile, nil
	}
}

// Forget drops the cached entry of a user, e.g. after a role change.
func (p *CachedProvider) Forget(userID int64) {
	p.cache.Remove(userID)
}
