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

// Package server is the REST and websocket front door of the ledger daemon.
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/common"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/lib"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/lib/middlewares"
	"github.com/algorand/go-microledger/daemon/ledgerd/api/server/v1/routes"
	"github.com/algorand/go-microledger/logging"
	"github.com/algorand/go-microledger/node"
	"github.com/algorand/go-microledger/protocol"
)

const (
	apiV1Tag        = "/v1"
	metricsEndpoint = "/metrics"
)

// wrapCtx passes a common context to each request without a global variable.
func wrapCtx(ctx lib.ReqContext, handler lib.HandlerFunc) echo.HandlerFunc {
	return func(context echo.Context) error {
		reqCtx := ctx
		reqCtx.Param = context.Param
		handler(reqCtx, context.Response(), context.Request())
		return nil
	}
}

// registerHandler registers a set of Routes to [router]. if [prefix] is not empty, it
// registers the routes to a new sub-router [prefix]
func registerHandlers(router *echo.Echo, prefix string, routes lib.Routes, ctx lib.ReqContext) {
	for _, route := range routes {
		r := router.Add(route.Method, prefix+route.Path, wrapCtx(ctx, route.HandlerFunc))
		r.Name = route.Name
	}
}

// ConfigureRouter registers every route of the daemon on e.
func ConfigureRouter(logger logging.Logger, node *node.Node, shutdown <-chan struct{}, e *echo.Echo) {
	e.Use(middlewares.MakeLogger(logger))
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		problem := protocol.RequestError
		if code >= http.StatusInternalServerError {
			problem = protocol.InternalError
		}
		if !c.Response().Committed {
			lib.ProblemResponse(c.Response(), code, problem, http.StatusText(code), logger)
		}
	}

	// Request Context
	ctx := lib.ReqContext{Node: node, Log: logger, Shutdown: shutdown}

	if node.Config().EnableMetrics {
		e.GET(metricsEndpoint, echo.WrapHandler(node.Metrics().Handler()))
	}

	// Registering common routes
	registerHandlers(e, "", common.Routes, ctx)

	// Registering v1 routes
	registerHandlers(e, apiV1Tag, routes.V1Routes, ctx)
}
