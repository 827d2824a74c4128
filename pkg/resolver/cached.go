// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"net/netip"
	"slices"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is used when NewCached is given a non-positive TTL.
const DefaultCacheTTL = 30 * time.Second

// DefaultCacheCapacity bounds the number of cached names.
const DefaultCacheCapacity = 4096

// sharedLookupTimeout bounds a lookup that several callers wait on. It runs
// detached from the first caller's cancellation.
const sharedLookupTimeout = 10 * time.Second

// Cached remembers successful answers of another Resolver for a fixed TTL and
// collapses concurrent lookups of the same name into one. Failures and empty
// answers are never cached.
//
// Caching is only sound when the cache itself is trusted; a validated address
// must still be the one that gets dialled.
type Cached struct {
	next  Resolver
	cache *ttlcache.Cache[string, []netip.Addr]
	group singleflight.Group
}

// NewCached wraps next.
func NewCached(next Resolver, ttl time.Duration, capacity uint64) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity == 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cached{
		next: next,
		cache: ttlcache.New[string, []netip.Addr](
			ttlcache.WithTTL[string, []netip.Addr](ttl),
			ttlcache.WithCapacity[string, []netip.Addr](capacity),
			ttlcache.WithDisableTouchOnHit[string, []netip.Addr](),
		),
	}
}

// LookupNetIP implements Resolver.
func (c *Cached) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	key := network + "/" + canonicalName(host)

	if item := c.cache.Get(key); item != nil {
		return slices.Clone(item.Value()), nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		addrs, err := c.next.LookupNetIP(lookupCtx, network, host)
		if err != nil {
			return nil, err
		}
		if len(addrs) > 0 {
			c.cache.Set(key, addrs, ttlcache.DefaultTTL)
		}
		return addrs, nil
	})

	select {
	case <-ctx.Done():
		return nil, &LookupError{Host: host, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]netip.Addr)), nil
	}
}

// Len returns the number of cached names.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Purge drops every cached answer.
func (c *Cached) Purge() {
	c.cache.DeleteAll()
}
