// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"fmt"

	"github.com/corekv/corekv/headergen"
	"github.com/corekv/corekv/logger"
	"github.com/corekv/corekv/rpc"
	"github.com/corekv/corekv/state"
)

var log = logger.GetLogger("storage/leasestore")

// backend is the two-phase execute/after-sync engine behind the store
// facade. Execute validates against a read-only view of the collection
// and stages a request context; afterSync drains the context and
// applies the mutation once the entry has committed.
type backend struct {
	leaseCollection *leaseCollection
	spExecPool      *speculativePool
	delTx           chan<- *DeleteMessage
	state           *state.State
	headerGen       *headergen.HeaderGenerator
}

func newBackend(delTx chan<- *DeleteMessage, st *state.State, hg *headergen.HeaderGenerator, collection *leaseCollection) *backend {
	return &backend{
		leaseCollection: collection,
		spExecPool:      newSpeculativePool(),
		delTx:           delTx,
		state:           st,
		headerGen:       hg,
	}
}

func (b *backend) isLeader() bool {
	return b.state.IsLeader()
}

func (b *backend) attach(leaseID int64, key []byte) error {
	return b.leaseCollection.attach(leaseID, key)
}

func (b *backend) detach(leaseID int64, key []byte) error {
	return b.leaseCollection.detach(leaseID, key)
}

func (b *backend) getLease(key []byte) int64 {
	return b.leaseCollection.getLease(key)
}

func (b *backend) lookUp(leaseID int64) *Lease {
	return b.leaseCollection.lookUp(leaseID)
}

// handleLeaseRequests is the execute phase: validate, build a response,
// and stage the request for after-sync. The staged entry records
// whether validation failed so the sync phase knows to skip it.
func (b *backend) handleLeaseRequests(id rpc.ProposeID, wrapper rpc.RequestWrapper) (rpc.ResponseWrapper, error) {
	var resp rpc.ResponseWrapper
	var err error
	switch req := wrapper.(type) {
	case *rpc.LeaseGrantRequest:
		log.Debugf("execute LeaseGrantRequest id=%d ttl=%d", req.ID, req.TTL)
		resp, err = b.handleLeaseGrantRequest(req)
	case *rpc.LeaseRevokeRequest:
		log.Debugf("execute LeaseRevokeRequest id=%d", req.ID)
		resp, err = b.handleLeaseRevokeRequest(req)
	default:
		panic(fmt.Sprintf("request type %T routed to the lease store", wrapper))
	}
	b.spExecPool.stage(id, wrapper, err != nil)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (b *backend) handleLeaseGrantRequest(req *rpc.LeaseGrantRequest) (*rpc.LeaseGrantResponse, error) {
	if req.ID == 0 {
		return nil, invalidCommand(ErrLeaseNotFound)
	}
	if req.TTL > MaxLeaseTTL {
		return nil, invalidCommandf(ErrTTLTooLarge, "lease ttl too large: %d", req.TTL)
	}
	if b.leaseCollection.containsLease(req.ID) {
		return nil, invalidCommandf(ErrLeaseExists, "lease already exists: %d", req.ID)
	}
	return &rpc.LeaseGrantResponse{
		Header: b.headerGen.GenHeaderWithoutRevision(),
		ID:     req.ID,
		TTL:    req.TTL,
	}, nil
}

func (b *backend) handleLeaseRevokeRequest(req *rpc.LeaseRevokeRequest) (*rpc.LeaseRevokeResponse, error) {
	if !b.leaseCollection.containsLease(req.ID) {
		return nil, invalidCommand(ErrLeaseNotFound)
	}
	return &rpc.LeaseRevokeResponse{
		Header: b.headerGen.GenHeaderWithoutRevision(),
	}, nil
}

// syncRequest is the after-sync phase: it runs once the log entry for
// the propose id has committed, in committed log order, and returns the
// revision after applying. Requests that failed validation leave the
// revision untouched.
func (b *backend) syncRequest(id rpc.ProposeID) int64 {
	ctx := b.spExecPool.take(id)
	if ctx.MetErr() {
		return b.headerGen.Revision()
	}
	switch req := ctx.Req().(type) {
	case *rpc.LeaseGrantRequest:
		log.Debugf("sync LeaseGrantRequest id=%d ttl=%d", req.ID, req.TTL)
		b.syncLeaseGrantRequest(req)
	case *rpc.LeaseRevokeRequest:
		log.Debugf("sync LeaseRevokeRequest id=%d", req.ID)
		b.syncLeaseRevokeRequest(req)
	default:
		panic(fmt.Sprintf("request type %T staged in the lease store", ctx.Req()))
	}
	return b.headerGen.Revision()
}

// syncLeaseGrantRequest re-checks the grant preconditions before
// applying: on a follower the collection may have changed between the
// speculative check and commit. A precondition that no longer holds
// turns the commit into a no-op, never into a failure.
func (b *backend) syncLeaseGrantRequest(req *rpc.LeaseGrantRequest) {
	if req.ID == 0 || req.TTL > MaxLeaseTTL || b.leaseCollection.containsLease(req.ID) {
		return
	}
	b.leaseCollection.grant(req.ID, req.TTL, b.isLeader())
	b.headerGen.NextRevision()
	grantsTotal.Inc()
}

// syncLeaseRevokeRequest removes the lease and hands its keys to the kv
// store. Keys are sorted so every replica deletes in identical order.
// Re-applying a revoke whose lease is already gone is a no-op.
func (b *backend) syncLeaseRevokeRequest(req *rpc.LeaseRevokeRequest) {
	lease := b.leaseCollection.revoke(req.ID)
	if lease == nil {
		return
	}
	b.headerGen.NextRevision()
	revokesTotal.Inc()

	keys := lease.Keys()
	if len(keys) == 0 {
		return
	}
	msg, ack := NewDeleteMessage(keys)
	b.delTx <- msg
	if _, ok := <-ack; !ok {
		panic("kv store closed the delete ack channel before acknowledging")
	}
	deleteBatchesTotal.Inc()
}
