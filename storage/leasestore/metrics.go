// Copyright 2023-present the CoreKV Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package leasestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leasesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corekv_lease_active",
		Help: "Number of leases currently held in the collection",
	})
	grantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corekv_lease_grants_total",
		Help: "Number of lease grants applied after sync",
	})
	revokesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corekv_lease_revokes_total",
		Help: "Number of lease revokes applied after sync",
	})
	expiredFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corekv_lease_expired_found_total",
		Help: "Number of expired leases reported by the expiration scan",
	})
	deleteBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corekv_lease_delete_batches_total",
		Help: "Number of delete messages sent to the kv store on revoke",
	})
	keepAlivesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corekv_lease_keep_alives_total",
		Help: "Number of successful keep-alive renewals",
	})
)
