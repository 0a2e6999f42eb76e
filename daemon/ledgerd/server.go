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

// Package ledgerd runs a ledger node behind its REST and websocket front door.
package ledgerd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/labstack/echo/v4"

	"github.com/algorand/go-microledger/agent/memagent"
	"github.com/algorand/go-microledger/config"
	apiServer "github.com/algorand/go-microledger/daemon/ledgerd/api/server"
	"github.com/algorand/go-microledger/ledger"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/node"
	"github.com/algorand/go-microledger/stream"
)

const (
	maxHeaderBytes   = 4096
	readTimeout      = 15 * time.Second
	agentCheckWindow = 10 * time.Second
)

// Server represents an instance of the ledger daemon.
type Server struct {
	RootPath string

	log       logging.Logger
	node      *node.Node
	store     *ledger.Store
	publisher *stream.KafkaPublisher
	http      http.Server
	pidFile   string
	netFile   string
	stopping  chan struct{}
}

// Initialize sets up logging, the agent, the local store and the node.
func (s *Server) Initialize(cfg config.Local) error {
	s.log = logging.Base()

	var logWriter io.Writer
	if cfg.LogSizeLimit > 0 {
		liveLog := filepath.Join(s.RootPath, cfg.LogFileName)
		fmt.Println("Logging to: ", liveLog)
		cyclic, err := logging.MakeCyclicFileWriter(liveLog, filepath.Join(s.RootPath, cfg.LogArchiveName), cfg.LogSizeLimit)
		if err != nil {
			return err
		}
		logWriter = cyclic
	} else {
		fmt.Println("Logging to: stdout")
		logWriter = os.Stdout
	}
	s.log.SetOutput(logWriter)
	s.log.SetJSONFormatter()
	s.log.SetLevel(logging.Level(cfg.BaseLoggerDebugLevel))
	setupDeadlockLogger()
	deadlock.Opts.Disable = !cfg.EnableDeadlockDetection

	s.log.Infoln("++++++++++++++++++++++++++++++++++++++++")
	s.log.Infof("Logging Starting: %s", config.GetCurrentVersion().String())
	s.log.Infoln("++++++++++++++++++++++++++++++++++++++++")

	if cfg.AgentDriver != config.AgentDriverMemory {
		return fmt.Errorf("unsupported agent driver %q", cfg.AgentDriver)
	}
	var seed []byte
	if cfg.AgentSeed != "" {
		var err error
		seed, err = hex.DecodeString(cfg.AgentSeed)
		if err != nil {
			return fmt.Errorf("invalid AgentSeed: %w", err)
		}
	}
	hub := memagent.MakeHub(s.log)
	mem, err := hub.AddNode("ledgerd", seed)
	if err != nil {
		return fmt.Errorf("couldn't initialize the agent: %w", err)
	}
	if cfg.Entity == "" {
		cfg.Entity = mem.DID
	} else if cfg.Entity != mem.DID {
		return fmt.Errorf("configured entity %s is not the agent identity %s; check AgentSeed", cfg.Entity, mem.DID)
	}

	s.store, err = ledger.OpenStore(context.Background(), filepath.Join(s.RootPath, cfg.DatabaseFilename), false, cfg.Entity, s.log)
	if err != nil {
		return fmt.Errorf("couldn't open the ledger store: %w", err)
	}

	s.node, err = node.MakeNode(s.log, cfg, mem.Connector(), s.store)
	if err != nil {
		s.store.Close()
		return fmt.Errorf("couldn't initialize the node: %w", err)
	}

	if cfg.EnableStream {
		s.publisher = stream.MakeKafkaPublisher(cfg, s.log)
		s.node.SetPublisher(s.publisher)
	}
	return nil
}

func makeListener(addr string) (net.Listener, error) {
	var listener net.Listener
	var err error
	if (addr == "127.0.0.1:0") || (addr == ":0") {
		// if port 0 is provided, prefer port 8080 first, then fall back to port 0
		preferredAddr := strings.Replace(addr, ":0", ":8080", -1)
		listener, err = net.Listen("tcp", preferredAddr)
		if err == nil {
			return listener, err
		}
	}
	// err was not nil or :0 was not provided, fall back to originally passed addr
	return net.Listen("tcp", addr)
}

// Start starts the node and serves the API until a signal or a server error.
func (s *Server) Start() {
	s.log.Info("Trying to start a ledger node")
	s.node.Start()

	ctx, cancel := context.WithTimeout(context.Background(), agentCheckWindow)
	err := s.node.CheckAgentConnection(ctx)
	cancel()
	if err != nil {
		s.log.Warnf("agent connection check failed: %v", err)
	}

	cfg := s.node.Config()
	s.stopping = make(chan struct{})

	addr := cfg.EndpointAddress
	if addr == "" {
		addr = ":http"
	}
	listener, err := makeListener(addr)
	if err != nil {
		fmt.Printf("Could not start node: %v\n", err)
		os.Exit(1)
	}
	addr = listener.Addr().String()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Listener = listener
	apiServer.ConfigureRouter(s.log, s.node, s.stopping, e)

	// No write timeout: commit rounds and the websocket stream outlive any fixed bound.
	s.http = http.Server{
		Addr:              addr,
		ReadHeaderTimeout: readTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	s.pidFile = filepath.Join(s.RootPath, config.PIDFilename)
	s.netFile = filepath.Join(s.RootPath, config.NetFilename)
	err = os.WriteFile(s.pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
	if err != nil {
		fmt.Printf("pidfile error: %v\n", err)
		os.Exit(1)
	}
	err = os.WriteFile(s.netFile, []byte(fmt.Sprintf("%s\n", addr)), 0644)
	if err != nil {
		fmt.Printf("netfile error: %v\n", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		err := e.StartServer(&s.http)
		errChan <- err
	}()

	// Handle signals cleanly
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	signal.Ignore(syscall.SIGHUP)

	fmt.Printf("Ledger node %s accepting requests over HTTP on %v. Press Ctrl-C to exit\n", cfg.Entity, addr)
	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			s.log.Warn(err)
		} else {
			s.log.Info("Node exited successfully")
		}
		s.Stop()
	case sig := <-c:
		fmt.Printf("Exiting on %v\n", sig)
		s.Stop()
		os.Exit(0)
	}
}

// Stop stops the API server, the node and the stream, then closes the store.
func (s *Server) Stop() {
	close(s.stopping)

	err := s.http.Shutdown(context.Background())
	if err != nil {
		s.log.Error(err)
	}

	s.node.Stop()

	if s.publisher != nil {
		err = s.publisher.Close()
		if err != nil {
			s.log.Warnf("event stream close: %v", err)
		}
	}
	s.store.Close()

	os.Remove(s.pidFile)
	os.Remove(s.netFile)
}
