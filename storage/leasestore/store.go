// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/corekv/corekv/headergen"
	"github.com/corekv/corekv/rpc"
	"github.com/corekv/corekv/state"
)

// Config carries the collaborators a LeaseStore is wired to.
type Config struct {
	// DeleteCh is where revoked leases' keys are sent for deletion. The
	// kv store must drain it and acknowledge every message.
	DeleteCh chan<- *DeleteMessage
	// CommandCh delivers attach/detach/lookup commands from other
	// stores. Closing it stops the command loop.
	CommandCh <-chan LeaseMessage
	// State is the shared node role flag.
	State *state.State
	// HeaderGen issues response headers and revisions.
	HeaderGen *headergen.HeaderGenerator
	// Clock used to alter time in tests
	Clock clockwork.Clock
}

func (c *Config) checkAndSetDefaults() error {
	if c.DeleteCh == nil {
		return errors.New("leasestore: missing delete channel")
	}
	if c.State == nil {
		return errors.New("leasestore: missing state")
	}
	if c.HeaderGen == nil {
		return errors.New("leasestore: missing header generator")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// LeaseStore is the outward API of the lease subsystem. All methods are
// safe for concurrent use.
type LeaseStore struct {
	inner *backend
}

// New wires a LeaseStore to its collaborators and, when a command
// channel is given, starts the command loop serving other stores.
func New(cfg Config) (*LeaseStore, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, err
	}
	ls := &LeaseStore{
		inner: newBackend(cfg.DeleteCh, cfg.State, cfg.HeaderGen, newLeaseCollection(cfg.Clock)),
	}
	if cfg.CommandCh != nil {
		go ls.run(cfg.CommandCh)
	}
	return ls, nil
}

// run serves lease commands from other stores until the channel closes.
// Replies are delivered without blocking; a full or abandoned reply
// channel means the requester broke the one-pending-reply contract.
func (ls *LeaseStore) run(cmdRx <-chan LeaseMessage) {
	for msg := range cmdRx {
		switch m := msg.(type) {
		case *AttachMessage:
			replyTo(m.Reply, ls.inner.attach(m.LeaseID, m.Key))
		case *DetachMessage:
			replyTo(m.Reply, ls.inner.detach(m.LeaseID, m.Key))
		case *GetLeaseMessage:
			replyTo(m.Reply, ls.inner.getLease(m.Key))
		case *LookUpMessage:
			replyTo(m.Reply, ls.inner.lookUp(m.LeaseID))
		default:
			panic(fmt.Sprintf("message type %T sent to the lease command loop", msg))
		}
	}
	log.Debug("lease command channel closed, stopping command loop")
}

func replyTo[T any](reply chan<- T, value T) {
	select {
	case reply <- value:
	default:
		panic("lease command reply could not be delivered")
	}
}

// Execute speculatively validates a lease request and stages it for
// after-sync under the given propose id. The response carries a header
// without a revision; the revision exists only after commit.
func (ls *LeaseStore) Execute(id rpc.ProposeID, req rpc.RequestWrapper) (*rpc.CommandResponse, error) {
	resp, err := ls.inner.handleLeaseRequests(id, req)
	if err != nil {
		return nil, err
	}
	return rpc.NewCommandResponse(resp), nil
}

// AfterSync applies the staged request for a committed propose id and
// returns the resulting revision. The consensus layer calls it in
// committed log order, exactly once per entry, after Execute.
func (ls *LeaseStore) AfterSync(id rpc.ProposeID) *rpc.SyncResponse {
	return rpc.NewSyncResponse(ls.inner.syncRequest(id))
}

// LookUp returns a copy of the lease with the given id, or nil.
func (ls *LeaseStore) LookUp(leaseID int64) *Lease {
	return ls.inner.lookUp(leaseID)
}

// Leases returns copies of all leases ordered by remaining lifetime.
func (ls *LeaseStore) Leases() []*Lease {
	return ls.inner.leaseCollection.leases()
}

// GetKeys returns the sorted keys attached to a lease.
func (ls *LeaseStore) GetKeys(leaseID int64) [][]byte {
	return ls.inner.leaseCollection.getKeys(leaseID)
}

// FindExpiredLeases reports the leases whose expiry has passed. The
// caller drives the cadence; each reported id should be revoked through
// the consensus pipeline.
func (ls *LeaseStore) FindExpiredLeases() []int64 {
	return ls.inner.leaseCollection.findExpiredLeases()
}

// KeepAlive refreshes a lease and returns its TTL in seconds. Only the
// leader runs expiry, so only the leader may serve keep-alives.
func (ls *LeaseStore) KeepAlive(leaseID int64) (int64, error) {
	if !ls.inner.isLeader() {
		return 0, invalidCommand(ErrNotLeader)
	}
	ttl, err := ls.inner.leaseCollection.renew(leaseID)
	if err != nil {
		return 0, err
	}
	keepAlivesTotal.Inc()
	return ttl, nil
}

// Promote switches expiration on after winning an election. Every lease
// is refreshed with the extend grace period before expiry resumes.
func (ls *LeaseStore) Promote(extend time.Duration) {
	ls.inner.leaseCollection.promote(extend)
}

// Demote switches expiration off after losing leadership.
func (ls *LeaseStore) Demote() {
	ls.inner.leaseCollection.demote()
}

// GenHeader returns a response header at the current revision.
func (ls *LeaseStore) GenHeader() *rpc.ResponseHeader {
	return ls.inner.headerGen.GenHeader()
}
