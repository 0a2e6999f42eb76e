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

package middlewares

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/algorand/go-microledger/logging"
)

// LoggerMiddleware provides some extra state to the logger middleware
type LoggerMiddleware struct {
	log logging.Logger
}

// MakeLogger initializes the logger middleware function
func MakeLogger(log logging.Logger) echo.MiddlewareFunc {
	logger := LoggerMiddleware{
		log: log,
	}

	return logger.handler
}

// handler logs one line per request, once the response is written.
// Websocket upgrades are logged when the socket closes.
func (logger *LoggerMiddleware) handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) (err error) {
		start := time.Now()

		res := ctx.Response()
		req := ctx.Request()

		// Propagate the error if the next middleware has a problem
		if err = next(ctx); err != nil {
			ctx.Error(err)
		}

		logger.log.WithFields(logging.Fields{
			"remote":   req.RemoteAddr,
			"method":   req.Method,
			"uri":      req.RequestURI,
			"status":   res.Status,
			"bytesOut": res.Size,
			"agent":    req.UserAgent(),
			"elapsed":  time.Since(start).String(),
		}).Info("http request")

		return
	}
}
