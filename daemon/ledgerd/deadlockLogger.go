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

package ledgerd

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-microledger/logging"
)

// deadlockLogger collects what go-deadlock writes about a potential deadlock
// and reports it through the node log once.
type deadlockLogger struct {
	logging.Logger
	*bytes.Buffer
	bufferSync     chan struct{}
	panic          func()
	reportDeadlock sync.Once
}

// Panic aborts the daemon after a deadlock was reported.
func (logger *deadlockLogger) Panic() {
	logger.Logger.Panic("potential deadlock detected")
}

// Write implements io.Writer for deadlock.Opts.LogBuf.
func (logger *deadlockLogger) Write(p []byte) (n int, err error) {
	logger.bufferSync <- struct{}{}
	n, err = logger.Buffer.Write(p)
	<-logger.bufferSync
	return
}

// captureCallstack returns the stacks of all goroutines.
func captureCallstack() []byte {
	bufferSize := 256 * 1024
	for {
		buf := make([]byte, bufferSize)
		n := runtime.Stack(buf, true)
		if n < bufferSize {
			return buf[:n]
		}
		bufferSize *= 2
	}
}

func (logger *deadlockLogger) onPotentialDeadlock() {
	logger.reportDeadlock.Do(func() {
		buf := captureCallstack()

		logger.bufferSync <- struct{}{}
		loggedString := logger.String()
		<-logger.bufferSync

		fmt.Fprintln(os.Stderr, string(buf))

		// The cyclic log writer holds a mutex of its own, so log from another goroutine.
		go func() {
			logger.With("goroutines", runtime.NumGoroutine()).Error(loggedString)
			logger.panic()
		}()
	})
}

func setupDeadlockLogger() *deadlockLogger {
	logger := &deadlockLogger{
		Logger:     logging.Base(),
		Buffer:     bytes.NewBuffer(make([]byte, 0)),
		bufferSync: make(chan struct{}, 1),
	}

	logger.panic = logger.Panic
	deadlock.Opts.LogBuf = logger
	deadlock.Opts.OnPotentialDeadlock = logger.onPotentialDeadlock
	return logger
}
