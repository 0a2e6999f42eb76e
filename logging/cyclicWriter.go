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

package logging

import (
	"fmt"
	"os"

	"github.com/algorand/go-deadlock"
)

// CyclicFileWriter is an io.Writer over a log file that never grows over a limit.
// When the next entry would not fit, the live file replaces the archive and
// writing starts over on an empty live file.
type CyclicFileWriter struct {
	mu        deadlock.Mutex
	writer    *os.File
	liveLog   string
	archive   string
	nextWrite uint64
	limit     uint64
	rotations int
}

// MakeCyclicFileWriter opens, or creates, the live log and resumes appending to it.
func MakeCyclicFileWriter(liveLogFilePath string, archiveFilePath string, sizeLimitBytes uint64) (*CyclicFileWriter, error) {
	writer, err := os.OpenFile(liveLogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}
	cyclic := &CyclicFileWriter{writer: writer, liveLog: liveLogFilePath, archive: archiveFilePath, limit: sizeLimitBytes}
	if fs, err := writer.Stat(); err == nil {
		cyclic.nextWrite = uint64(fs.Size())
	}
	return cyclic, nil
}

// Write appends p to the live log, archiving it first when p would not fit.
// Entries longer than the limit are refused.
func (cyclic *CyclicFileWriter) Write(p []byte) (n int, err error) {
	cyclic.mu.Lock()
	defer cyclic.mu.Unlock()

	if uint64(len(p)) > cyclic.limit {
		return 0, fmt.Errorf("log entry of %d bytes exceeds the log size limit %d", len(p), cyclic.limit)
	}
	if cyclic.nextWrite+uint64(len(p)) > cyclic.limit {
		err = cyclic.rotate()
		if err != nil {
			return 0, err
		}
	}
	n, err = cyclic.writer.Write(p)
	cyclic.nextWrite += uint64(n)
	return
}

func (cyclic *CyclicFileWriter) rotate() error {
	cyclic.writer.Close()
	err := os.Rename(cyclic.liveLog, cyclic.archive)
	if err != nil {
		return fmt.Errorf("cannot archive full log: %w", err)
	}
	cyclic.writer, err = os.OpenFile(cyclic.liveLog, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return fmt.Errorf("cannot reopen log file: %w", err)
	}
	cyclic.nextWrite = 0
	cyclic.rotations++
	return nil
}

// Rotations returns how many times the live log was archived by this writer.
func (cyclic *CyclicFileWriter) Rotations() int {
	cyclic.mu.Lock()
	defer cyclic.mu.Unlock()
	return cyclic.rotations
}

// Close closes the live log file.
func (cyclic *CyclicFileWriter) Close() error {
	cyclic.mu.Lock()
	defer cyclic.mu.Unlock()
	return cyclic.writer.Close()
}
