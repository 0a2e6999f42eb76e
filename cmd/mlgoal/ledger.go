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

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/protocol"
)

var (
	requestFile string
	watch       bool
	listLimit   int
)

func init() {
	ledgerCmd.AddCommand(createLedgerCmd)
	ledgerCmd.AddCommand(listLedgersCmd)
	ledgerCmd.AddCommand(ledgerTxnsCmd)
	ledgerCmd.AddCommand(resetLedgerCmd)
	ledgerCmd.AddCommand(clearLedgersCmd)

	createLedgerCmd.Flags().StringVarP(&requestFile, "file", "f", "", "JSON file with the create-ledger request")
	createLedgerCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stream the progress of the round over the websocket endpoint")
	createLedgerCmd.MarkFlagRequired("file")

	ledgerTxnsCmd.Flags().IntVarP(&listLimit, "limit", "l", 0, "List only the most recent transactions")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Create, inspect and reset microledgers",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		//If no arguments passed, we should fallback to help
		cmd.HelpFunc()(cmd, args)
	},
}

// readRequest decodes the JSON file at path into obj.
func readRequest(path string, obj interface{}) {
	raw, err := os.ReadFile(path)
	if err != nil {
		reportErrorf(errorReadFile, path, err)
	}
	err = protocol.DecodeJSON(raw, obj)
	if err != nil {
		reportErrorf(errorParseFile, path, err)
	}
}

var createLedgerCmd = &cobra.Command{
	Use:   "create",
	Short: "Agree on a new ledger with the participants",
	Long:  "Agree on a new ledger with the participants. The file holds a create-ledger request: name, time_to_live, genesis and optionally participants.",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		var req microledger.CreateLedgerRequest
		readRequest(requestFile, &req)
		if req.ID == "" {
			req.ID = protocol.NewID()
		}

		if watch {
			var body map[string]interface{}
			readRequest(requestFile, &body)
			body[microledger.TypeField] = string(protocol.CreateLedgerType)
			body[microledger.IDField] = req.ID
			streamRequest(cmd.Context(), ensureClientURL(), protocol.EncodeJSON(body))
			return
		}

		response, err := ensureClient().CreateLedger(cmd.Context(), req)
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		reportSuccessf(infoLedgerCreated, response.Ledger.Name, response.Ledger.Transactions)
	},
}

var listLedgersCmd = &cobra.Command{
	Use:   "list",
	Short: "List the ledgers stored by the daemon",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		response, err := ensureClient().Ledgers(cmd.Context())
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		if len(response.Ledgers) == 0 {
			reportInfof(infoNoLedgers)
			return
		}
		sort.Slice(response.Ledgers, func(i, j int) bool { return response.Ledgers[i].Name < response.Ledgers[j].Name })

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTRANSACTIONS\tACTOR\tCREATED")
		for _, l := range response.Ledgers {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", l.Name, l.Transactions, actorOf(l.Metadata), l.Created.Format("2006-01-02 15:04:05"))
		}
		w.Flush()
	},
}

// actorOf renders the actor recorded in ledger metadata, e.g. "SELF" or "PEER did:...".
func actorOf(metadata map[string]interface{}) string {
	actor, ok := metadata["actor"].(map[string]interface{})
	if !ok {
		return "-"
	}
	label, _ := actor["label"].(string)
	did, _ := actor["did"].(string)
	if label == "PEER" && did != "" {
		return label + " " + did
	}
	if label == "" {
		return "-"
	}
	return label
}

var ledgerTxnsCmd = &cobra.Command{
	Use:   "txns [name]",
	Short: "List the committed transactions of a ledger",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		response, err := ensureClient().Transactions(cmd.Context(), args[0], listLimit)
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQNO\tNO\tTYPE\tSIGNER\tCOUNTERPARTY")
		for _, txn := range response.Transactions {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", txn.SeqNo, txn.Txn.String("no"), shortType(txn.Txn.String(microledger.TypeField)), orDash(txn.Signer), orDash(txn.ActorEntity))
		}
		w.Flush()
	},
}

func shortType(t string) string {
	if i := strings.LastIndex(t, "/"); i >= 0 {
		return t[i+1:]
	}
	return orDash(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var resetLedgerCmd = &cobra.Command{
	Use:   "reset [name]",
	Short: "Drop a ledger from the agent and from the local store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, err := ensureClient().ResetLedger(cmd.Context(), args[0])
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		reportSuccessf(infoLedgerReset, args[0])
	},
}

var clearLedgersCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every ledger of the daemon's entity",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		response, err := ensureClient().ClearLedgers(cmd.Context())
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		reportSuccessf(infoLedgersCleared, response.Reset)
	},
}
