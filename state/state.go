// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package state tracks the node's consensus role as seen by the storage
// layer. The role controller flips it on election events; stores only
// ever read it.
package state

import "sync/atomic"

// State is the shared role flag. The zero value is a follower.
type State struct {
	leader atomic.Bool
}

// New returns a State in the follower role.
func New() *State {
	return &State{}
}

// IsLeader reports whether this node currently believes it is the
// leader. The answer can be stale by up to an election timeout; callers
// must tolerate acting on an outdated role.
func (s *State) IsLeader() bool {
	return s.leader.Load()
}

// SetLeader records a role change.
func (s *State) SetLeader(leader bool) {
	s.leader.Store(leader)
}
