package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

// Default sizing of the user lookup cache.
const (
	DefaultUserCacheSize = 512
	DefaultUserCacheTTL  = 5 * time.Minute
)

// Users resolves user ids to accounts, caching both hits and misses.
type Users struct {
	cache *expirable.LRU[string, *record.User]
}

// NewUsers creates a user lookup cache. Non-positive arguments use the
// defaults.
func NewUsers(size int, ttl time.Duration) *Users {
	if size <= 0 {
		size = DefaultUserCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultUserCacheTTL
	}
	return &Users{cache: expirable.NewLRU[string, *record.User](size, nil, ttl)}
}

// Lookup returns the user with the given id, or nil when there is none.
func (u *Users) Lookup(ctx context.Context, r store.Reader, id string) (*record.User, error) {
	if id == "" {
		return nil, nil
	}
	if user, ok := u.cache.Get(id); ok {
		return user, nil
	}
	user, err := r.User(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		user, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}
	u.cache.Add(id, user)
	return user, nil
}

// FullName renders a user id as "id (full name)". The id is returned alone
// when the user is unknown or has no name.
func (u *Users) FullName(ctx context.Context, r store.Reader, id string) (string, error) {
	user, err := u.Lookup(ctx, r, id)
	if err != nil {
		return "", err
	}
	if user == nil {
		return id, nil
	}
	if name := user.DisplayName(); name != "" {
		return fmt.Sprintf("%s (%s)", id, name), nil
	}
	return id, nil
}

// Purge drops every cached entry.
func (u *Users) Purge() {
	u.cache.Purge()
}
