// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// leasesim runs the lease store standalone in a single process: a
// consensus stand-in applies grants and revokes in order, a kv stand-in
// drains delete messages, and a scan loop expires leases. It exists to
// exercise the store under a realistic wiring without a cluster.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/corekv/corekv/config"
	"github.com/corekv/corekv/headergen"
	"github.com/corekv/corekv/logger"
	"github.com/corekv/corekv/rpc"
	"github.com/corekv/corekv/state"
	"github.com/corekv/corekv/storage/leasestore"
)

var log = logger.GetLogger("main")

var (
	flagConfig   = flag.StringP("conf", "c", "", "config file path")
	flagLogFile  = flag.StringP("logfile", "l", "", "log to this file as well")
	flagLogLevel = flag.StringP("loglevel", "L", "", "log level, overrides the config file")
)

// proposer is the consensus stand-in: it assigns propose ids and drives
// both phases in order, the way committed log application would.
type proposer struct {
	store *leasestore.LeaseStore
}

func (p *proposer) propose(req rpc.RequestWrapper) (rpc.ResponseWrapper, int64, error) {
	id := rpc.ProposeID(uuid.NewString())
	resp, err := p.store.Execute(id, req)
	sync := p.store.AfterSync(id)
	if err != nil {
		return nil, sync.Revision(), err
	}
	return resp.Decode(), sync.Revision(), nil
}

func runKV(delRx <-chan *leasestore.DeleteMessage) {
	kvlog := logger.GetLogger("kvsim")
	for msg := range delRx {
		for _, key := range msg.Keys() {
			kvlog.Infof("delete %q", key)
		}
		msg.Ack()
	}
}

func run(conf *config.Config) error {
	clock := clockwork.NewRealClock()
	st := state.New()
	hg := headergen.New(uint64(uuid.New().ID()), uint64(uuid.New().ID()))

	delCh := make(chan *leasestore.DeleteMessage, conf.DeleteBufferSize)
	cmdCh := make(chan leasestore.LeaseMessage, conf.CommandBufferSize)
	defer close(cmdCh)
	go runKV(delCh)

	store, err := leasestore.New(leasestore.Config{
		DeleteCh:  delCh,
		CommandCh: cmdCh,
		State:     st,
		HeaderGen: hg,
		Clock:     clock,
	})
	if err != nil {
		return err
	}
	prop := &proposer{store: store}

	// Single node, so it is leader from the start.
	st.SetLeader(true)
	store.Promote(conf.PromoteExtend)

	for i := 0; i < conf.SimLeases; i++ {
		leaseID := int64(i + 1)
		if _, _, err := prop.propose(&rpc.LeaseGrantRequest{ID: leaseID, TTL: conf.SimTTLSeconds}); err != nil {
			return fmt.Errorf("grant %d failed: %w", leaseID, err)
		}
		for k := 0; k < conf.SimKeysPerLease; k++ {
			reply := make(chan error, 1)
			cmdCh <- &leasestore.AttachMessage{
				Reply:   reply,
				LeaseID: leaseID,
				Key:     []byte(fmt.Sprintf("lease%d/key%d", leaseID, k)),
			}
			if err := <-reply; err != nil {
				return fmt.Errorf("attach to %d failed: %w", leaseID, err)
			}
		}
	}
	log.Infof("granted %d leases with ttl %ds", conf.SimLeases, conf.SimTTLSeconds)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := clock.NewTicker(conf.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			for _, id := range store.FindExpiredLeases() {
				log.Infof("lease %d expired, revoking", id)
				if _, rev, err := prop.propose(&rpc.LeaseRevokeRequest{ID: id}); err != nil {
					log.Errorf("revoke %d failed: %v", id, err)
				} else {
					log.Infof("revoked lease %d at revision %d", id, rev)
				}
			}
			if len(store.Leases()) == 0 {
				log.Info("all leases expired, shutting down")
				return nil
			}
		case s := <-sig:
			log.Infof("received %s, demoting and shutting down", s)
			st.SetLeader(false)
			store.Demote()
			return nil
		}
	}
}

func main() {
	flag.Parse()

	conf, err := config.Load(*flagConfig)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *flagLogLevel != "" {
		conf.LogLevel = *flagLogLevel
	}
	if err := logger.SetLevel(log, conf.LogLevel); err != nil {
		log.Fatalf("%v", err)
	}
	if *flagLogFile != "" {
		conf.LogFile = *flagLogFile
	}
	if conf.LogFile != "" {
		logger.WithFile(log, conf.LogFile)
	}

	if err := run(conf); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
}
