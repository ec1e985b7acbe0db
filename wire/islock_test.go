// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func mkHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestMsgISLockRoundTrip(t *testing.T) {
	orig := NewMsgISLock(
		mkHash(0x01),
		[]Outpoint{
			{Hash: mkHash(0x02), Index: 0},
			{Hash: mkHash(0x03), Index: 1},
		},
		Signature{0xaa},
	)

	var buf bytes.Buffer
	require.NoError(t, orig.BtcEncode(&buf, 0))

	var decoded MsgISLock
	require.NoError(t, decoded.BtcDecode(&buf, 0))

	require.Equal(t, orig.Txid, decoded.Txid)
	require.Equal(t, orig.Inputs, decoded.Inputs)
	require.Equal(t, orig.Signature, decoded.Signature)
	require.Equal(t, CmdISLock, decoded.Command())
}

func TestMsgISDLockRoundTrip(t *testing.T) {
	orig := NewMsgISDLock(
		mkHash(0x10),
		[]Outpoint{{Hash: mkHash(0x11), Index: 3}},
		mkHash(0x12),
		Signature{0xbb},
	)

	var buf bytes.Buffer
	require.NoError(t, orig.BtcEncode(&buf, ISDLockProtoVersion))

	var decoded MsgISDLock
	require.NoError(t, decoded.BtcDecode(&buf, ISDLockProtoVersion))

	require.Equal(t, orig.Txid, decoded.Txid)
	require.Equal(t, orig.Inputs, decoded.Inputs)
	require.Equal(t, orig.CycleHash, decoded.CycleHash)
	require.Equal(t, orig.Signature, decoded.Signature)
	require.Equal(t, CmdISDLock, decoded.Command())
}

func TestMsgISDLockRejectsOldProtoVersion(t *testing.T) {
	msg := NewMsgISDLock(mkHash(0x01), nil, mkHash(0x02), Signature{})

	var buf bytes.Buffer
	require.Error(t, msg.BtcEncode(&buf, ISDLockProtoVersion-1))
}

func TestOutpointString(t *testing.T) {
	op := Outpoint{Hash: mkHash(0xff), Index: 7}
	require.Contains(t, op.String(), ":7")
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}
