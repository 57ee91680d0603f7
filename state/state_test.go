// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateDefaultsToFollower(t *testing.T) {
	s := New()
	assert.False(t, s.IsLeader())
}

func TestStateSetLeader(t *testing.T) {
	s := New()

	s.SetLeader(true)
	assert.True(t, s.IsLeader())

	s.SetLeader(false)
	assert.False(t, s.IsLeader())
}
