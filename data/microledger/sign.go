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

package microledger

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hdevalence/ed25519consensus"
	"github.com/mr-tron/base58"

	"github.com/algorand/go-microledger/protocol"
)

// SignatureType identifies the detached ed25519 signature scheme.
const SignatureType = "https://didcomm.org/signature/1.0/ed25519Sha512_single"

// SignatureBlock is the detached signature attached to a document under "msg~sig".
type SignatureBlock struct {
	Type      string `codec:"@type"`
	Signer    string `codec:"signer"`
	Signature string `codec:"signature"`
	SigData   string `codec:"sig_data,omitempty"`
}

// ErrNoSignature is returned when a document carries no signature block.
var ErrNoSignature = errors.New("document is not signed")

// ErrBadSignature is returned when a signature does not verify against its signer.
var ErrBadSignature = errors.New("signature verification failed")

// Signer produces a signature block over data with the key behind verkey.
type Signer interface {
	Sign(ctx context.Context, data []byte, verkey string) (SignatureBlock, error)
}

// SigningPayload returns the canonical bytes a signature covers: the document without its signature block.
func SigningPayload(doc Document) ([]byte, error) {
	body := doc.Copy()
	delete(body, SignatureField)
	return protocol.EncodeJSONErr(body)
}

// Sign returns a copy of doc with a fresh signature block by verkey, replacing any existing one.
// The signed-data echo is stripped from the block.
func Sign(ctx context.Context, signer Signer, doc Document, verkey string) (Document, error) {
	if verkey == "" {
		return nil, &SigningError{Err: errors.New("no signing key")}
	}
	payload, err := SigningPayload(doc)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	sig, err := signer.Sign(ctx, payload, verkey)
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	if sig.Signature == "" {
		return nil, &SigningError{Err: fmt.Errorf("empty signature for %s", verkey)}
	}
	sig.SigData = ""
	if sig.Type == "" {
		sig.Type = SignatureType
	}
	if sig.Signer == "" {
		sig.Signer = verkey
	}

	out := doc.Copy()
	out[SignatureField] = map[string]interface{}{
		TypeField:   sig.Type,
		"signer":    sig.Signer,
		"signature": sig.Signature,
	}
	return out, nil
}

// SignatureOf extracts the signature block of doc.
func SignatureOf(doc Document) (SignatureBlock, bool) {
	m, ok := asMap(doc[SignatureField])
	if !ok {
		return SignatureBlock{}, false
	}
	var sig SignatureBlock
	sig.Type, _ = m[TypeField].(string)
	sig.Signer, _ = m["signer"].(string)
	sig.Signature, _ = m["signature"].(string)
	sig.SigData, _ = m["sig_data"].(string)
	if sig.Signer == "" || sig.Signature == "" {
		return SignatureBlock{}, false
	}
	return sig, true
}

// VerifySignature checks the signature block of doc against its signer key.
// When trusted is non-empty the signer must also be one of the trusted verkeys.
func VerifySignature(doc Document, trusted ...string) error {
	sig, ok := SignatureOf(doc)
	if !ok {
		return ErrNoSignature
	}
	if len(trusted) > 0 {
		known := false
		for _, k := range trusted {
			if k == sig.Signer {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("signer %s is not a registry participant", sig.Signer)
		}
	}
	pk, err := base58.Decode(sig.Signer)
	if err != nil || len(pk) != ed25519.PublicKeySize {
		return fmt.Errorf("malformed signer key %q", sig.Signer)
	}
	raw, err := DecodeSignature(sig.Signature)
	if err != nil {
		return err
	}
	payload, err := SigningPayload(doc)
	if err != nil {
		return err
	}
	if !ed25519consensus.Verify(ed25519.PublicKey(pk), payload, raw) {
		return ErrBadSignature
	}
	return nil
}

// EncodeSignature renders raw signature bytes the way signature blocks carry them.
func EncodeSignature(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeSignature is the inverse of EncodeSignature.
func DecodeSignature(s string) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed signature: %w", err)
	}
	return raw, nil
}
