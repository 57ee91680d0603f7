// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeaseTTLClamped(t *testing.T) {
	l := newLease(1, 0)
	assert.Equal(t, time.Duration(MinLeaseTTL)*time.Second, l.TTL())

	l = newLease(2, 10)
	assert.Equal(t, 10*time.Second, l.TTL())
}

func TestLeaseRefreshAndForever(t *testing.T) {
	now := time.Now()
	l := newLease(1, 10)

	assert.False(t, l.expiredAt(now), "a fresh lease has no expiry")

	expiry := l.refresh(now, 0)
	assert.Equal(t, now.Add(10*time.Second), expiry)
	assert.False(t, l.expiredAt(now))
	assert.True(t, l.expiredAt(now.Add(10*time.Second)))
	assert.True(t, l.expiredAt(now.Add(time.Minute)))

	expiry = l.refresh(now, 3*time.Second)
	assert.Equal(t, now.Add(13*time.Second), expiry)

	l.forever()
	assert.False(t, l.expiredAt(now.Add(time.Hour)))
}

func TestLeaseRemainingOrdering(t *testing.T) {
	now := time.Now()
	short := newLease(1, 1)
	long := newLease(2, 100)
	frozen := newLease(3, 1)

	short.refresh(now, 0)
	long.refresh(now, 0)
	frozen.forever()

	assert.Less(t, short.remainingAt(now), long.remainingAt(now))
	assert.Less(t, long.remainingAt(now), frozen.remainingAt(now),
		"a frozen lease sorts after every expiring lease")
}

func TestLeaseKeysSorted(t *testing.T) {
	l := newLease(1, 10)
	for _, k := range []string{"b", "a", "c"} {
		l.insertKey([]byte(k))
	}
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, l.Keys())

	l.removeKey([]byte("b"))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("c")}, l.Keys())
}

func TestLeaseCloneIsIndependent(t *testing.T) {
	l := newLease(1, 10)
	l.insertKey([]byte("key"))

	c := l.clone()
	c.insertKey([]byte("other"))

	assert.Len(t, l.Keys(), 1)
	assert.Len(t, c.Keys(), 2)
}
