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

package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
)

// ConfigFilename is the name of the config.json file where we store per-node settings
const ConfigFilename = "config.json"

// LockFilename guards a data directory against a second daemon.
const LockFilename = "ledgerd.lock"

// NetFilename records the address the daemon listens on.
const NetFilename = "ledgerd.net"

// PIDFilename records the process id of the daemon.
const PIDFilename = "ledgerd.pid"

// LoadConfigFromDisk returns a Local config structure based on merging the defaults
// with settings loaded from the config file from the custom dir.  If the custom file
// cannot be loaded, the default config is returned (with the error from loading the
// custom file).
func LoadConfigFromDisk(custom string) (c Local, err error) {
	return loadConfigFromFile(filepath.Join(custom, ConfigFilename))
}

func loadConfigFromFile(configFile string) (c Local, err error) {
	c = defaultLocal
	c.Version = 0 // Reset to 0 so we get the version from the loaded file.
	c, err = mergeConfigFromFile(configFile, c)
	if err != nil {
		c.Version = defaultLocal.Version
		return
	}
	c, err = migrate(c)
	return
}

// GetDefaultLocal returns a copy of the current defaultLocal config
func GetDefaultLocal() Local {
	c := defaultLocal
	c.Participants = append([]string(nil), defaultLocal.Participants...)
	return c
}

func mergeConfigFromFile(configpath string, source Local) (Local, error) {
	f, err := os.Open(configpath)
	if err != nil {
		return source, err
	}
	defer f.Close()

	err = loadConfig(f, &source)
	return source, err
}

func loadConfig(reader io.Reader, config *Local) error {
	dec := json.NewDecoder(reader)
	return dec.Decode(config)
}

// defaultChanges lists, for each Version, the fields whose default changed in
// that version and the default they held before it.
var defaultChanges = map[uint32]map[string]interface{}{
	// version 0 had no rotation limit and kept the log on stderr
	1: {"LogSizeLimit": uint64(0)},
}

// migrate brings a config written against older defaults up to the current Version.
// A field still holding an old default moves to the current default.
func migrate(cfg Local) (Local, error) {
	if cfg.Version > defaultLocal.Version {
		return cfg, fmt.Errorf("unexpected config version: %d", cfg.Version)
	}
	current := reflect.ValueOf(defaultLocal)
	for cfg.Version < defaultLocal.Version {
		next := cfg.Version + 1
		fields := reflect.ValueOf(&cfg).Elem()
		for name, old := range defaultChanges[next] {
			field := fields.FieldByName(name)
			if reflect.DeepEqual(field.Interface(), old) {
				field.Set(current.FieldByName(name))
			}
		}
		cfg.Version = next
	}
	return cfg, nil
}
