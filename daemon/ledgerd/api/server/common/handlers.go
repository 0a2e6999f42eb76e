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

package common

import (
	"net/http"

	"github.com/algorand/go-microledger/config"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/lib"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/spec/v1"
)

// HealthCheck is an httpHandler for route GET /health
func HealthCheck(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	lib.SendJSON(w, http.StatusOK, v1.HealthResponse{Success: true, Message: "OK"}, ctx.Log)
}

// VersionsHandler is an httpHandler for route GET /versions
func VersionsHandler(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	response := v1.VersionResponse{
		Versions: []string{"v1"},
		Build:    config.GetCurrentVersion().String(),
	}
	if ctx.Node != nil {
		response.Entity = ctx.Node.Config().Entity
	}
	lib.SendJSON(w, http.StatusOK, response, ctx.Log)
}

// CORS
func optionsHandler(ctx lib.ReqContext, w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
