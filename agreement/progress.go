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

package agreement

import (
	"sync/atomic"

	"github.com/algorand/go-microledger/protocol"
)

// Event is one progress notification of a running round.
// The terminal event of a failed request carries the problem report and Done.
type Event struct {
	Progress float64
	Message  string
	Done     bool
	Problem  *protocol.ProblemReport
}

// Observer receives the progress of a round. Notify runs on the orchestration
// path and must return promptly.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// Notify calls f(ev).
func (f ObserverFunc) Notify(ev Event) {
	f(ev)
}

// MultiObserver fans every event out to each of its observers.
type MultiObserver []Observer

// Notify implements Observer.
func (m MultiObserver) Notify(ev Event) {
	for _, o := range m {
		if o != nil {
			o.Notify(ev)
		}
	}
}

// ChanObserver delivers events on a buffered channel and drops them when the buffer is full.
type ChanObserver struct {
	C       chan Event
	dropped atomic.Uint64
}

// MakeChanObserver returns a ChanObserver buffering up to size events.
func MakeChanObserver(size int) *ChanObserver {
	return &ChanObserver{C: make(chan Event, size)}
}

// Notify implements Observer.
func (c *ChanObserver) Notify(ev Event) {
	select {
	case c.C <- ev:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns how many events did not fit in the buffer.
func (c *ChanObserver) Dropped() uint64 {
	return c.dropped.Load()
}

// RoundLogger turns the state machine log of a consensus round into progress
// events for obs. Entries carrying neither "progress" nor "message" are dropped;
// an entry without "progress" repeats the last percentage seen.
func RoundLogger(obs Observer) func(map[string]interface{}) {
	if obs == nil {
		return nil
	}
	var last atomic.Uint64
	return func(fields map[string]interface{}) {
		pct, hasProgress := toFloat(fields["progress"])
		msg, hasMessage := fields["message"].(string)
		if !hasProgress && !hasMessage {
			return
		}
		if hasProgress {
			last.Store(uint64(pct * 100))
		} else {
			pct = float64(last.Load()) / 100
		}
		obs.Notify(Event{Progress: pct, Message: msg})
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
