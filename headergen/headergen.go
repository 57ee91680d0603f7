// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package headergen issues response headers stamped with a monotonically
// increasing revision counter shared by all stores of a node.
package headergen

import (
	"sync/atomic"

	"github.com/corekv/corekv/rpc"
)

// HeaderGenerator produces response headers for a single node. The
// revision counter only moves forward; concurrent readers see a
// consistent snapshot through atomic loads.
type HeaderGenerator struct {
	revision  atomic.Int64
	clusterID uint64
	memberID  uint64
}

// New returns a HeaderGenerator for the given cluster and member.
func New(clusterID, memberID uint64) *HeaderGenerator {
	hg := &HeaderGenerator{
		clusterID: clusterID,
		memberID:  memberID,
	}
	hg.revision.Store(1)
	return hg
}

// GenHeader returns a header carrying the current revision.
func (hg *HeaderGenerator) GenHeader() *rpc.ResponseHeader {
	return &rpc.ResponseHeader{
		ClusterID: hg.clusterID,
		MemberID:  hg.memberID,
		Revision:  hg.Revision(),
	}
}

// GenHeaderWithoutRevision returns a header for a speculative response,
// before the entry has committed and a revision is known.
func (hg *HeaderGenerator) GenHeaderWithoutRevision() *rpc.ResponseHeader {
	return &rpc.ResponseHeader{
		ClusterID: hg.clusterID,
		MemberID:  hg.memberID,
		Revision:  -1,
	}
}

// Revision returns the current revision.
func (hg *HeaderGenerator) Revision() int64 {
	return hg.revision.Load()
}

// NextRevision advances the revision counter and returns the new value.
// It is called once per applied mutation.
func (hg *HeaderGenerator) NextRevision() int64 {
	return hg.revision.Add(1)
}
