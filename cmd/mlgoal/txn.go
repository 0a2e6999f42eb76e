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
	"time"

	"github.com/spf13/cobra"

	"github.com/algorand/go-microledger/daemon/ledgerd/api/spec/v1"
	"github.com/algorand/go-microledger/data/microledger"
	"github.com/algorand/go-microledger/protocol"
)

var txnTimeToLive time.Duration

func init() {
	txnCmd.AddCommand(issueTxnCmd)
	txnCmd.AddCommand(parallelTxnCmd)

	issueTxnCmd.Flags().StringVarP(&requestFile, "file", "f", "", "JSON file with the transaction")
	issueTxnCmd.Flags().DurationVar(&txnTimeToLive, "ttl", 0, "Time to live of the consensus round; the daemon default when zero")
	issueTxnCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stream the progress of the round over the websocket endpoint")
	issueTxnCmd.MarkFlagRequired("file")

	parallelTxnCmd.Flags().StringVarP(&requestFile, "file", "f", "", "JSON file mapping ledger names to their transactions")
	parallelTxnCmd.Flags().DurationVar(&txnTimeToLive, "ttl", 0, "Time to live of the consensus round; the daemon default when zero")
	parallelTxnCmd.MarkFlagRequired("file")
}

var txnCmd = &cobra.Command{
	Use:   "txn",
	Short: "Issue transactions to microledgers",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		//If no arguments passed, we should fallback to help
		cmd.HelpFunc()(cmd, args)
	},
}

var issueTxnCmd = &cobra.Command{
	Use:   "issue",
	Short: "Commit one transaction to the ledger it names in ledger.name",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		var doc microledger.Document
		readRequest(requestFile, &doc)
		if doc.String(microledger.IDField) == "" {
			doc[microledger.IDField] = protocol.NewID()
		}

		if watch {
			if doc.String(microledger.TypeField) == "" {
				doc[microledger.TypeField] = string(protocol.IssueTransactionType)
			}
			streamRequest(cmd.Context(), ensureClientURL(), protocol.EncodeJSON(doc))
			return
		}

		response, err := ensureClient().IssueTransaction(cmd.Context(), doc, txnTimeToLive)
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		reportSuccessf(infoTxnCommitted, doc.LedgerName(), response.Transaction.SeqNo())
	},
}

var parallelTxnCmd = &cobra.Command{
	Use:   "parallel",
	Short: "Commit transactions to several ledgers at once, all or none",
	Args:  validateNoPosArgsFn,
	Run: func(cmd *cobra.Command, args []string) {
		var req v1.ParallelRequest
		readRequest(requestFile, &req.Transactions)
		for _, docs := range req.Transactions {
			for _, doc := range docs {
				if doc.String(microledger.IDField) == "" {
					doc[microledger.IDField] = protocol.NewID()
				}
			}
		}

		response, err := ensureClient().IssueParallel(cmd.Context(), req.Transactions, txnTimeToLive)
		if err != nil {
			reportErrorf(errorRequestFail, err)
		}
		for name, txns := range response.Committed {
			for _, txn := range txns {
				reportInfof(infoTxnCommitted, name, txn.SeqNo())
			}
		}
		reportSuccessf(infoParallelDone, len(response.Committed))
	},
}
