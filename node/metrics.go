// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

package node

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/algorand/go-microledger/agreement"
	"github.com/algorand/go-microledger/data/microledger"
)

// Metrics holds the collectors of one node. Each node registers into its own
// registry so that several nodes can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	rounds    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inbound   *prometheus.CounterVec
	persisted prometheus.Counter
	restarts  *prometheus.CounterVec
}

func makeMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "microledger_commit_rounds_total",
			Help: "Consensus rounds run by this node, by kind and result.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "microledger_round_duration_seconds",
			Help:    "Duration of consensus rounds, by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "microledger_inbound_messages_total",
			Help: "Inbound protocol messages dispatched, by kind.",
		}, []string{"kind"}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "microledger_persisted_transactions_total",
			Help: "Transactions written to the local ledger store.",
		}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "microledger_dispatcher_restarts_total",
			Help: "Restarts of the inbound dispatcher, by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.rounds,
		m.duration,
		m.inbound,
		m.persisted,
		m.restarts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the node's metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRound(kind string, start time.Time, err error) {
	m.rounds.WithLabelValues(kind, resultOf(err)).Inc()
	m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func resultOf(err error) string {
	var cf *agreement.CommitFailedError
	var verr *microledger.ValidationError
	var perr *agreement.PersistenceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, agreement.ErrCommitTimeout):
		return "timeout"
	case errors.As(err, &cf):
		return "failed"
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &perr):
		return "unpersisted"
	default:
		return "error"
	}
}
