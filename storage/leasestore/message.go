// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

// LeaseMessage is a command another store sends to the lease command
// loop. Reply channels must be buffered for at least one element: the
// loop delivers replies without blocking and treats an undeliverable
// reply as a programming error.
type LeaseMessage interface {
	isLeaseMessage()
}

// AttachMessage asks the store to bind a key to a lease.
type AttachMessage struct {
	Reply   chan<- error
	LeaseID int64
	Key     []byte
}

// DetachMessage asks the store to unbind a key from a lease.
type DetachMessage struct {
	Reply   chan<- error
	LeaseID int64
	Key     []byte
}

// GetLeaseMessage asks which lease owns a key. The reply is 0 when the
// key is unleased.
type GetLeaseMessage struct {
	Reply chan<- int64
	Key   []byte
}

// LookUpMessage asks for a copy of a lease by id. The reply is nil when
// the lease does not exist.
type LookUpMessage struct {
	Reply   chan<- *Lease
	LeaseID int64
}

func (*AttachMessage) isLeaseMessage()   {}
func (*DetachMessage) isLeaseMessage()   {}
func (*GetLeaseMessage) isLeaseMessage() {}
func (*LookUpMessage) isLeaseMessage()   {}

// DeleteMessage carries the keys of a revoked lease to the kv store.
// The sender blocks until the kv store acknowledges the deletion, so
// revocation is not reported applied before the keys are gone.
type DeleteMessage struct {
	keys [][]byte
	ack  chan struct{}
}

// NewDeleteMessage builds a delete message for the given keys and
// returns the channel the acknowledgement arrives on.
func NewDeleteMessage(keys [][]byte) (*DeleteMessage, <-chan struct{}) {
	msg := &DeleteMessage{
		keys: keys,
		ack:  make(chan struct{}, 1),
	}
	return msg, msg.ack
}

// Keys returns the keys to delete, in the order they must be deleted.
func (m *DeleteMessage) Keys() [][]byte {
	return m.keys
}

// Ack signals that every key has been deleted.
func (m *DeleteMessage) Ack() {
	m.ack <- struct{}{}
}
