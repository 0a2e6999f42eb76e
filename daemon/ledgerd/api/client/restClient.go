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

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/algorand/go-microledger/daemon/ledgerd/api/spec/v1"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/protocol"
)

const (
	healthCheckEndpoint = "/health"
	maxRawResponseBytes = 50e6
)

// HTTPError is generated when we receive an unhandled error from the server.
// It carries the problem report of the failed request when the server sent one.
type HTTPError struct {
	StatusCode  int
	Status      string
	ProblemCode string
	ErrorString string
}

// Error formats an error string.
func (e HTTPError) Error() string {
	if e.ProblemCode != "" {
		return fmt.Sprintf("HTTP %s: %s: %s", e.Status, e.ProblemCode, e.ErrorString)
	}
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.ErrorString)
}

// RestClient manages the REST interface of a ledger daemon.
type RestClient struct {
	serverURL url.URL
	http      *http.Client
}

// MakeRestClient is the factory for constructing a RestClient for a given endpoint.
// Commit rounds block the request until they are decided, so timeout should
// exceed the time to live of the rounds submitted through the client.
func MakeRestClient(url url.URL, timeout time.Duration) RestClient {
	return RestClient{
		serverURL: url,
		http:      &http.Client{Timeout: timeout},
	}
}

// filterASCII filter out the non-ascii printable characters out of the given input string.
// It's used as a security qualifier before adding network provided data into an error message.
func filterASCII(unfilteredString string) (filteredString string) {
	for i, r := range unfilteredString {
		if int(r) >= 0x20 && int(r) <= 0x7e {
			filteredString += string(unfilteredString[i])
		}
	}
	return
}

// extractError checks if the response signifies an error.
// If so, it returns the error.
// Otherwise, it returns nil.
func extractError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}

	errorBuf, _ := io.ReadAll(resp.Body) // ignore returned error
	var errorJSON v1.ErrorResponse
	decodeErr := protocol.DecodeJSON(errorBuf, &errorJSON)

	herr := HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	if decodeErr == nil && errorJSON.ProblemCode != "" {
		herr.ProblemCode = filterASCII(errorJSON.ProblemCode)
		herr.ErrorString = filterASCII(errorJSON.Explain)
	} else {
		herr.ErrorString = filterASCII(string(errorBuf))
	}
	return herr
}

// submitForm is a helper used for submitting (ex.) GETs and POSTs to the server
func (client RestClient) submitForm(ctx context.Context, response interface{}, path string, params interface{}, body interface{}, requestMethod string) error {
	queryURL := client.serverURL
	queryURL.Path = path

	if params != nil {
		v, err := query.Values(params)
		if err != nil {
			return err
		}
		queryURL.RawQuery = v.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := protocol.EncodeJSONErr(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, requestMethod, queryURL.String(), bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.http.Do(req)
	if err != nil {
		return err
	}

	// Ensure response isn't too large
	resp.Body = http.MaxBytesReader(nil, resp.Body, maxRawResponseBytes)
	defer resp.Body.Close()

	err = extractError(resp)
	if err != nil {
		return err
	}

	if response == nil {
		return nil
	}
	return protocol.NewJSONDecoder(resp.Body).Decode(response)
}

// get performs a GET request to the specific path against the server
func (client RestClient) get(ctx context.Context, response interface{}, path string, request interface{}) error {
	return client.submitForm(ctx, response, path, request, nil, http.MethodGet)
}

// post sends body to the specific path against the server
func (client RestClient) post(ctx context.Context, response interface{}, path string, params interface{}, body interface{}) error {
	return client.submitForm(ctx, response, path, params, body, http.MethodPost)
}

func (client RestClient) delete(ctx context.Context, response interface{}, path string) error {
	return client.submitForm(ctx, response, path, nil, nil, http.MethodDelete)
}

// HealthCheck does a health check on the daemon
func (client RestClient) HealthCheck(ctx context.Context) (response v1.HealthResponse, err error) {
	err = client.get(ctx, &response, healthCheckEndpoint, nil)
	return
}

// Versions retrieves the API versions and the entity the daemon acts as
func (client RestClient) Versions(ctx context.Context) (response v1.VersionResponse, err error) {
	err = client.get(ctx, &response, "/versions", nil)
	return
}

// Ledgers lists the ledgers stored by the daemon
func (client RestClient) Ledgers(ctx context.Context) (response v1.LedgersResponse, err error) {
	err = client.get(ctx, &response, "/v1/ledgers", nil)
	return
}

// Transactions lists the most recent transactions of a ledger. A zero limit lists them all.
func (client RestClient) Transactions(ctx context.Context, name string, limit int) (response v1.TransactionsResponse, err error) {
	err = client.get(ctx, &response, fmt.Sprintf("/v1/ledgers/%s/transactions", url.PathEscape(name)), v1.TransactionsParams{Limit: limit})
	return
}

// CreateLedger asks the daemon to agree on a new ledger with its participants
func (client RestClient) CreateLedger(ctx context.Context, req microledger.CreateLedgerRequest) (response v1.LedgerResponse, err error) {
	err = client.post(ctx, &response, "/v1/ledgers", nil, req)
	return
}

// IssueTransaction commits one transaction to the ledger it names. A zero ttl selects the daemon default.
func (client RestClient) IssueTransaction(ctx context.Context, doc microledger.Document, ttl time.Duration) (response v1.TransactionResponse, err error) {
	err = client.post(ctx, &response, "/v1/transactions", v1.SubmitParams{TimeToLive: int(ttl / time.Second)}, doc)
	return
}

// IssueParallel commits transactions to several ledgers in one round
func (client RestClient) IssueParallel(ctx context.Context, docs map[string][]microledger.Document, ttl time.Duration) (response v1.ParallelResponse, err error) {
	err = client.post(ctx, &response, "/v1/transactions/parallel", v1.SubmitParams{TimeToLive: int(ttl / time.Second)}, v1.ParallelRequest{Transactions: docs})
	return
}

// ResetLedger drops a ledger from the agent and from the daemon's store
func (client RestClient) ResetLedger(ctx context.Context, name string) (response v1.ResetResponse, err error) {
	err = client.delete(ctx, &response, "/v1/ledgers/"+url.PathEscape(name))
	return
}

// ClearLedgers drops every ledger of the daemon's entity
func (client RestClient) ClearLedgers(ctx context.Context) (response v1.ResetResponse, err error) {
	err = client.delete(ctx, &response, "/v1/ledgers")
	return
}
