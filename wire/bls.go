// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "encoding/hex"

// PublicKeySize is the number of bytes a compressed BLS public key
// occupies on the wire.
const PublicKeySize = 48

// SignatureSize is the number of bytes a BLS aggregate signature occupies
// on the wire.
const SignatureSize = 96

// PublicKey is an opaque, fixed-size BLS public key. The InstantSend core
// never performs pairing operations on it directly; it is produced and
// consumed by the external quorum-signing collaborator (see the Signer
// interface in package instantsend) and exists here purely as a wire/
// storage value type, the same way chainhash.Hash is a value type rather
// than an active cryptographic object.
type PublicKey [PublicKeySize]byte

// String returns the hex-encoded form of the public key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// IsEqual returns whether pk and other represent the same public key.
func (pk PublicKey) IsEqual(other PublicKey) bool {
	return pk == other
}

// Signature is an opaque, fixed-size BLS aggregate signature.
type Signature [SignatureSize]byte

// String returns the hex-encoded form of the signature.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// IsEqual returns whether s and other represent the same signature.
func (s Signature) IsEqual(other Signature) bool {
	return s == other
}

// IsZero returns true for the zero-value signature, which no valid lock
// carries; batch verification drops a pending lock whose signature is
// zero.
func (s Signature) IsZero() bool {
	return s == Signature{}
}
