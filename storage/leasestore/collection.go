// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// leaseCollection ties together the lease table, the key reverse index
// and the expiry queue. One RWMutex guards all three; no method holds
// it across anything that can block.
//
// Queue discipline: on a leader every lease with an expiry appears in
// the queue exactly once. Revoke does not scrub the queue, so stale
// entries are possible; findExpiredLeases re-checks the lease table
// before reporting an id. On a follower the queue is empty and every
// lease has no expiry.
type leaseCollection struct {
	mu           sync.RWMutex
	clock        clockwork.Clock
	leaseMap     map[int64]*Lease
	itemMap      map[string]int64
	expiredQueue *expiryQueue
}

func newLeaseCollection(clock clockwork.Clock) *leaseCollection {
	return &leaseCollection{
		clock:        clock,
		leaseMap:     make(map[int64]*Lease),
		itemMap:      make(map[string]int64),
		expiredQueue: newExpiryQueue(),
	}
}

// grant inserts a new lease. On a leader the lease starts its expiry
// countdown immediately; elsewhere it rests forever until a promote.
// Callers check for an existing id first; grant on a present id is a
// no-op.
func (c *leaseCollection) grant(leaseID, ttl int64, isLeader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.leaseMap[leaseID]; ok {
		return
	}
	lease := newLease(leaseID, ttl)
	if isLeader {
		expiry := lease.refresh(c.clock.Now(), 0)
		c.expiredQueue.insert(leaseID, expiry)
	} else {
		lease.forever()
	}
	c.leaseMap[leaseID] = lease
	leasesActive.Inc()
}

// revoke removes and returns the lease. The reverse index is left
// untouched: the caller forwards the keys to the kv store, and the
// detach triggered by the kv-level delete is what prunes itemMap.
func (c *leaseCollection) revoke(leaseID int64) *Lease {
	c.mu.Lock()
	defer c.mu.Unlock()

	lease, ok := c.leaseMap[leaseID]
	if !ok {
		return nil
	}
	delete(c.leaseMap, leaseID)
	leasesActive.Dec()
	return lease
}

// renew refreshes the lease expiry and returns the TTL in seconds.
func (c *leaseCollection) renew(leaseID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lease, ok := c.leaseMap[leaseID]
	if !ok {
		return 0, invalidCommand(ErrLeaseNotFound)
	}
	now := c.clock.Now()
	if lease.expiredAt(now) {
		return 0, invalidCommand(ErrLeaseExpired)
	}
	expiry := lease.refresh(now, 0)
	c.expiredQueue.update(leaseID, expiry)
	return int64(lease.TTL() / time.Second), nil
}

// attach binds a key to the lease. Rebinding an already-attached key is
// last-writer-wins on the reverse index.
func (c *leaseCollection) attach(leaseID int64, key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lease, ok := c.leaseMap[leaseID]
	if !ok {
		return invalidCommand(ErrLeaseNotFound)
	}
	lease.insertKey(key)
	c.itemMap[string(key)] = leaseID
	return nil
}

// detach removes a key from the lease and the reverse index.
func (c *leaseCollection) detach(leaseID int64, key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lease, ok := c.leaseMap[leaseID]
	if !ok {
		return invalidCommand(ErrLeaseNotFound)
	}
	lease.removeKey(key)
	delete(c.itemMap, string(key))
	return nil
}

// getLease returns the id owning the key, or 0 if the key is unleased.
func (c *leaseCollection) getLease(key []byte) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.itemMap[string(key)]
}

// lookUp returns a copy of the lease, or nil.
func (c *leaseCollection) lookUp(leaseID int64) *Lease {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lease, ok := c.leaseMap[leaseID]
	if !ok {
		return nil
	}
	return lease.clone()
}

func (c *leaseCollection) containsLease(leaseID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.leaseMap[leaseID]
	return ok
}

// leases returns copies of all leases, ordered by remaining lifetime.
func (c *leaseCollection) leases() []*Lease {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	out := make([]*Lease, 0, len(c.leaseMap))
	for _, lease := range c.leaseMap {
		out = append(out, lease.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].remainingAt(now), out[j].remainingAt(now)
		if ri == rj {
			return out[i].id < out[j].id
		}
		return ri < rj
	})
	return out
}

// getKeys returns the sorted keys attached to the lease.
func (c *leaseCollection) getKeys(leaseID int64) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lease, ok := c.leaseMap[leaseID]
	if !ok {
		return nil
	}
	return lease.Keys()
}

// findExpiredLeases pops every queue entry whose expiry has passed and
// reports the ids still present in the lease table. Stale entries left
// behind by revoke are popped and dropped silently.
func (c *leaseCollection) findExpiredLeases() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []int64
	now := c.clock.Now()
	for {
		expiry, ok := c.expiredQueue.peek()
		if !ok || now.Before(expiry) {
			break
		}
		id, _ := c.expiredQueue.pop()
		if _, ok := c.leaseMap[id]; ok {
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		expiredFoundTotal.Add(float64(len(expired)))
	}
	return expired
}

// promote restarts the expiry countdown of every lease, extended by a
// grace period covering client intent unknown across the election.
func (c *leaseCollection) promote(extend time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for id, lease := range c.leaseMap {
		expiry := lease.refresh(now, extend)
		c.expiredQueue.insert(id, expiry)
	}
}

// demote freezes every lease and empties the queue. A follower must
// never expire leases on its own.
func (c *leaseCollection) demote() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, lease := range c.leaseMap {
		lease.forever()
	}
	c.expiredQueue.clear()
}
