// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionGrantLeader(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	c.grant(1, 10, true)
	require.True(t, c.containsLease(1))
	assert.Equal(t, 1, c.expiredQueue.len(), "leader grants join the expiry queue")

	lease := c.lookUp(1)
	require.NotNil(t, lease)
	assert.False(t, lease.expiry.IsZero())
	assert.Equal(t, 10*time.Second, lease.TTL())
}

func TestCollectionGrantFollower(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	c.grant(1, 10, false)
	require.True(t, c.containsLease(1))
	assert.Equal(t, 0, c.expiredQueue.len(), "follower grants never join the queue")

	lease := c.lookUp(1)
	require.NotNil(t, lease)
	assert.True(t, lease.expiry.IsZero())
}

func TestCollectionGrantExistingIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	c.grant(1, 10, true)
	c.grant(1, 99, true)

	lease := c.lookUp(1)
	require.NotNil(t, lease)
	assert.Equal(t, 10*time.Second, lease.TTL())
}

func TestCollectionRenew(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	_, err := c.renew(1)
	assert.ErrorIs(t, err, ErrLeaseNotFound)

	c.grant(1, 10, true)
	clock.Advance(5 * time.Second)

	ttl, err := c.renew(1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), ttl)

	lease := c.lookUp(1)
	assert.Equal(t, clock.Now().Add(10*time.Second), lease.expiry,
		"renew restarts the countdown from now")

	clock.Advance(11 * time.Second)
	_, err = c.renew(1)
	assert.ErrorIs(t, err, ErrLeaseExpired)
}

func TestCollectionAttachDetach(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	err := c.attach(1, []byte("key"))
	assert.ErrorIs(t, err, ErrLeaseNotFound)
	err = c.detach(1, []byte("key"))
	assert.ErrorIs(t, err, ErrLeaseNotFound)

	c.grant(1, 10, true)
	require.NoError(t, c.attach(1, []byte("key")))
	assert.Equal(t, int64(1), c.getLease([]byte("key")))
	assert.Equal(t, [][]byte{[]byte("key")}, c.getKeys(1))

	require.NoError(t, c.detach(1, []byte("key")))
	assert.Equal(t, int64(0), c.getLease([]byte("key")))
	assert.Empty(t, c.getKeys(1))
}

// Rebinding an attached key is last-writer-wins on the reverse index:
// the key stays in the old lease's set, but the index points at the new
// owner.
func TestCollectionAttachRebindLastWriterWins(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	c.grant(1, 10, true)
	c.grant(2, 10, true)

	require.NoError(t, c.attach(1, []byte("key")))
	require.NoError(t, c.attach(2, []byte("key")))

	assert.Equal(t, int64(2), c.getLease([]byte("key")))
	assert.Equal(t, [][]byte{[]byte("key")}, c.getKeys(1))
	assert.Equal(t, [][]byte{[]byte("key")}, c.getKeys(2))
}

func TestCollectionRevoke(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	assert.Nil(t, c.revoke(1))

	c.grant(1, 10, true)
	require.NoError(t, c.attach(1, []byte("key")))

	lease := c.revoke(1)
	require.NotNil(t, lease)
	assert.Equal(t, [][]byte{[]byte("key")}, lease.Keys())
	assert.False(t, c.containsLease(1))
	assert.Equal(t, int64(1), c.getLease([]byte("key")),
		"revoke leaves the reverse index for the kv-level detach to prune")
}

func TestCollectionFindExpiredLeases(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	c.grant(1, 1, true)
	c.grant(2, 1, true)
	c.grant(3, 100, true)

	assert.Empty(t, c.findExpiredLeases())

	// Leave a stale queue entry behind by revoking after the grant.
	c.revoke(2)

	clock.Advance(2 * time.Second)
	assert.Equal(t, []int64{1}, c.findExpiredLeases(),
		"stale entries are dropped, unexpired leases stay")
	assert.Empty(t, c.findExpiredLeases(), "expired ids are reported once")

	clock.Advance(200 * time.Second)
	assert.Equal(t, []int64{3}, c.findExpiredLeases())
}

func TestCollectionPromoteDemote(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	c.grant(1, 1, false)
	c.grant(2, 1, false)
	require.Equal(t, 0, c.expiredQueue.len())

	clock.Advance(time.Hour)
	assert.Empty(t, c.findExpiredLeases(), "a follower never expires leases")

	c.promote(2 * time.Second)
	assert.Equal(t, 2, c.expiredQueue.len())
	assert.Empty(t, c.findExpiredLeases(), "the extend grace keeps leases alive across promotion")

	// ttl 1s + extend 2s
	clock.Advance(4 * time.Second)
	assert.Equal(t, []int64{1, 2}, c.findExpiredLeases())

	c.grant(3, 1, true)
	c.demote()
	assert.Equal(t, 0, c.expiredQueue.len())
	clock.Advance(time.Hour)
	assert.Empty(t, c.findExpiredLeases())
	lease := c.lookUp(3)
	assert.True(t, lease.expiry.IsZero(), "demote freezes every lease")
}

func TestCollectionLeasesSortedByRemaining(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLeaseCollection(clock)

	c.grant(1, 100, true)
	c.grant(2, 10, true)
	c.grant(3, 50, false) // frozen, sorts last

	leases := c.leases()
	require.Len(t, leases, 3)
	assert.Equal(t, int64(2), leases[0].ID())
	assert.Equal(t, int64(1), leases[1].ID())
	assert.Equal(t, int64(3), leases[2].ID())
}
