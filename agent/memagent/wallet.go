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

package memagent

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/algorand/go-deadlock"
	"github.com/mr-tron/base58"

	"github.com/algorand/go-microledger/data/microledger"
)

// Wallet holds ed25519 keys indexed by base58 verkey.
type Wallet struct {
	mu   deadlock.RWMutex
	keys map[string]ed25519.PrivateKey
	dids map[string]string
}

func makeWallet() *Wallet {
	return &Wallet{
		keys: make(map[string]ed25519.PrivateKey),
		dids: make(map[string]string),
	}
}

// CreateKey derives a key pair from seed (random when seed is empty) and
// registers it under its DID, the base58 of the first 16 bytes of the verkey.
func (w *Wallet) CreateKey(seed []byte) (did string, verkey string, err error) {
	var priv ed25519.PrivateKey
	if len(seed) == 0 {
		_, priv, err = ed25519.GenerateKey(nil)
		if err != nil {
			return "", "", err
		}
	} else {
		if len(seed) != ed25519.SeedSize {
			return "", "", fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	pub := priv.Public().(ed25519.PublicKey)
	verkey = base58.Encode(pub)
	did = base58.Encode(pub[:16])

	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys[verkey] = priv
	w.dids[did] = verkey
	return did, verkey, nil
}

// Sign implements microledger.Signer.
func (w *Wallet) Sign(ctx context.Context, data []byte, verkey string) (microledger.SignatureBlock, error) {
	w.mu.RLock()
	priv, ok := w.keys[verkey]
	w.mu.RUnlock()
	if !ok {
		return microledger.SignatureBlock{}, fmt.Errorf("wallet has no key for %s", verkey)
	}
	return microledger.SignatureBlock{
		Type:      microledger.SignatureType,
		Signer:    verkey,
		Signature: microledger.EncodeSignature(ed25519.Sign(priv, data)),
		SigData:   microledger.EncodeSignature(data),
	}, nil
}

// KeyForLocalDID returns the verkey of a DID created in this wallet.
func (w *Wallet) KeyForLocalDID(ctx context.Context, did string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	verkey, ok := w.dids[did]
	if !ok {
		return "", fmt.Errorf("did %s is not local", did)
	}
	return verkey, nil
}
