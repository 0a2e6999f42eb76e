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

// Package stream publishes the live events of a node to Kafka, so that
// monitoring services can follow requests and committed transactions.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/segmentio/kafka-go"

	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/protocol"
)

const (
	queueSize    = 1024
	maxBatch     = 64
	writeTimeout = 5 * time.Second
)

// Event kinds.
const (
	KindProgress  = "progress"
	KindProblem   = "problem"
	KindCommitted = "committed"
)

// Event is the value of every published message.
type Event struct {
	Stream  string      `codec:"stream"`
	Entity  string      `codec:"entity"`
	Kind    string      `codec:"kind"`
	Payload interface{} `codec:"payload"`
}

// Committed is the payload of a KindCommitted event.
type Committed struct {
	Ledger       string                    `codec:"ledger"`
	Transactions []microledger.Transaction `codec:"transactions"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events and writes them from a background goroutine.
// When the queue is full new events are dropped; publishing never blocks the caller.
type KafkaPublisher struct {
	w      messageWriter
	entity string
	log    logging.Logger

	mu     deadlock.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// MakeKafkaPublisher connects to cfg.StreamBrokers and publishes to cfg.StreamTopic.
func MakeKafkaPublisher(cfg config.Local, log logging.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.StreamBrokers...),
		Topic:        cfg.StreamTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return makePublisher(w, cfg.Entity, log.With("topic", cfg.StreamTopic), queueSize)
}

func makePublisher(w messageWriter, entity string, log logging.Logger, size int) *KafkaPublisher {
	p := &KafkaPublisher{
		w:      w,
		entity: entity,
		log:    log,
		queue:  make(chan kafka.Message, size),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// PublishProgress publishes a progress report of the request stream.
func (p *KafkaPublisher) PublishProgress(stream string, report protocol.ProgressReport) {
	p.enqueue(stream, KindProgress, report)
}

// PublishProblem publishes the problem report that ended the request stream.
func (p *KafkaPublisher) PublishProblem(stream string, report protocol.ProblemReport) {
	p.enqueue(stream, KindProblem, report)
}

// PublishCommitted publishes transactions written to the local store, keyed by ledger.
func (p *KafkaPublisher) PublishCommitted(ledger string, txns []microledger.Transaction) {
	p.enqueue(ledger, KindCommitted, Committed{Ledger: ledger, Transactions: txns})
}

// Dropped returns how many events were discarded because the queue was full or closed.
func (p *KafkaPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *KafkaPublisher) enqueue(key, kind string, payload interface{}) {
	value, err := protocol.EncodeJSONErr(Event{Stream: key, Entity: p.entity, Kind: kind, Payload: payload})
	if err != nil {
		p.log.Warnf("cannot encode %s event: %v", kind, err)
		return
	}
	msg := kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.queue <- msg:
	default:
		if p.dropped.Add(1) == 1 {
			p.log.Warn("stream queue is full, dropping events")
		}
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	batch := make([]kafka.Message, 0, maxBatch)
	for msg := range p.queue {
		batch = append(batch[:0], msg)
	fill:
		for len(batch) < maxBatch {
			select {
			case more, ok := <-p.queue:
				if !ok {
					break fill
				}
				batch = append(batch, more)
			default:
				break fill
			}
		}
		p.write(batch)
	}
}

func (p *KafkaPublisher) write(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := p.w.WriteMessages(ctx, batch...)
	if err != nil {
		p.failed.Add(uint64(len(batch)))
		p.log.Warnf("cannot publish %d event(s): %v", len(batch), err)
	}
}

// Close flushes queued events and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}
