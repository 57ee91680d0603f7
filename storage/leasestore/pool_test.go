// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corekv/corekv/rpc"
)

func TestPoolStageAndTake(t *testing.T) {
	p := newSpeculativePool()
	req := &rpc.LeaseGrantRequest{ID: 1, TTL: 10}

	p.stage("id-1", req, false)
	p.stage("id-2", req, true)

	ctx := p.take("id-1")
	assert.False(t, ctx.MetErr())
	require.Equal(t, req, ctx.Req())

	ctx = p.take("id-2")
	assert.True(t, ctx.MetErr())
}

func TestPoolTakeRemoves(t *testing.T) {
	p := newSpeculativePool()
	p.stage("id-1", &rpc.LeaseRevokeRequest{ID: 1}, false)

	p.take("id-1")
	assert.Panics(t, func() { p.take("id-1") })
}

func TestPoolStageOverwritesSameID(t *testing.T) {
	p := newSpeculativePool()
	p.stage("id-1", &rpc.LeaseGrantRequest{ID: 1, TTL: 10}, true)
	p.stage("id-1", &rpc.LeaseGrantRequest{ID: 1, TTL: 20}, false)

	ctx := p.take("id-1")
	assert.False(t, ctx.MetErr())
	grant, ok := ctx.Req().(*rpc.LeaseGrantRequest)
	require.True(t, ok)
	assert.Equal(t, int64(20), grant.TTL)
}
