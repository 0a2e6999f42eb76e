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

package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetUserVersion returns the schema version recorded in the database.
func GetUserVersion(ctx context.Context, tx *sqlx.Tx) (userVersion int32, err error) {
	err = tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&userVersion)
	return
}

// SetUserVersion records the schema version and returns the previous one.
func SetUserVersion(ctx context.Context, tx *sqlx.Tx, userVersion int32) (previous int32, err error) {
	previous, err = GetUserVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", userVersion))
	if err != nil {
		return 0, err
	}
	return previous, nil
}

// Migration upgrades the schema by one version.
type Migration func(ctx context.Context, tx *sqlx.Tx) error

// Migrate runs, in order, the migrations the database has not seen yet.
// migrations[i] upgrades the schema from version i to i+1.
func Migrate(ctx context.Context, tx *sqlx.Tx, migrations []Migration) (int32, error) {
	ver, err := GetUserVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if int(ver) > len(migrations) {
		return ver, fmt.Errorf("database schema version %d is newer than supported %d", ver, len(migrations))
	}
	for v := int(ver); v < len(migrations); v++ {
		err = migrations[v](ctx, tx)
		if err != nil {
			return int32(v), fmt.Errorf("migrate to version %d: %w", v+1, err)
		}
	}
	_, err = SetUserVersion(ctx, tx, int32(len(migrations)))
	return int32(len(migrations)), err
}
