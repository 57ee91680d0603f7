// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package leasestore implements the lease subsystem of the store: a
// collection of time-bounded leases owning sets of keys, driven through
// the two-phase execute/after-sync protocol of the consensus pipeline.
package leasestore

import (
	"math"
	"sort"
	"time"
)

const (
	// MinLeaseTTL is the smallest TTL a lease can be granted with, in
	// seconds. Requests below it are clamped up.
	MinLeaseTTL int64 = 1
	// MaxLeaseTTL is the largest TTL a grant may request, in seconds.
	MaxLeaseTTL int64 = 9_000_000_000
)

// Lease is a time-bounded token owning a set of keys. A zero expiry
// means the lease never expires locally; that is the resting state on
// followers, where only replicated revokes may remove a lease.
type Lease struct {
	id     int64
	ttl    time.Duration
	expiry time.Time
	keys   map[string]struct{}
}

func newLease(id, ttlSecs int64) *Lease {
	if ttlSecs < MinLeaseTTL {
		ttlSecs = MinLeaseTTL
	}
	return &Lease{
		id:   id,
		ttl:  time.Duration(ttlSecs) * time.Second,
		keys: make(map[string]struct{}),
	}
}

// ID returns the lease id.
func (l *Lease) ID() int64 {
	return l.id
}

// TTL returns the lease lifetime.
func (l *Lease) TTL() time.Duration {
	return l.ttl
}

// Keys returns a sorted snapshot of the keys attached to the lease.
func (l *Lease) Keys() [][]byte {
	keys := make([][]byte, 0, len(l.keys))
	for k := range l.keys {
		keys = append(keys, []byte(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i]) < string(keys[j])
	})
	return keys
}

// refresh sets the expiry to now + ttl + extend and returns it.
func (l *Lease) refresh(now time.Time, extend time.Duration) time.Time {
	l.expiry = now.Add(l.ttl + extend)
	return l.expiry
}

// forever clears the expiry so the lease never expires locally.
func (l *Lease) forever() {
	l.expiry = time.Time{}
}

func (l *Lease) expiredAt(now time.Time) bool {
	return !l.expiry.IsZero() && !now.Before(l.expiry)
}

// remainingAt orders leases by time left. Leases without an expiry sort
// after every expiring lease.
func (l *Lease) remainingAt(now time.Time) time.Duration {
	if l.expiry.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return l.expiry.Sub(now)
}

func (l *Lease) insertKey(key []byte) {
	l.keys[string(key)] = struct{}{}
}

func (l *Lease) removeKey(key []byte) {
	delete(l.keys, string(key))
}

// clone returns an independent copy of the lease, detached from the
// collection's locking regime.
func (l *Lease) clone() *Lease {
	keys := make(map[string]struct{}, len(l.keys))
	for k := range l.keys {
		keys[k] = struct{}{}
	}
	return &Lease{
		id:     l.id,
		ttl:    l.ttl,
		expiry: l.expiry,
		keys:   keys,
	}
}
