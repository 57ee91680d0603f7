// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"fmt"
	"sync"

	"github.com/corekv/corekv/rpc"
)

// RequestCtx pairs a staged request with its speculative-execution
// outcome. When metErr is set, the after-sync phase must not mutate
// state for this entry.
type RequestCtx struct {
	req    rpc.RequestWrapper
	metErr bool
}

// MetErr reports whether speculative execution rejected the request.
func (c RequestCtx) MetErr() bool {
	return c.metErr
}

// Req returns the staged request.
func (c RequestCtx) Req() rpc.RequestWrapper {
	return c.req
}

// speculativePool maps propose ids to staged request contexts between
// the execute and after-sync phases. The mutex is only held for map
// operations.
type speculativePool struct {
	mu   sync.Mutex
	reqs map[rpc.ProposeID]RequestCtx
}

func newSpeculativePool() *speculativePool {
	return &speculativePool{
		reqs: make(map[rpc.ProposeID]RequestCtx),
	}
}

func (p *speculativePool) stage(id rpc.ProposeID, req rpc.RequestWrapper, metErr bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reqs[id] = RequestCtx{req: req, metErr: metErr}
}

// take removes and returns the context staged for the propose id. A
// missing entry means the consensus pipeline called after-sync without
// a matching execute; that contract violation is unrecoverable.
func (p *speculativePool) take(id rpc.ProposeID) RequestCtx {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, ok := p.reqs[id]
	if !ok {
		panic(fmt.Sprintf("no speculative execution staged for propose id %q", id))
	}
	delete(p.reqs, id)
	return ctx
}
