// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxVarIntPayload is the maximum payload size, in bytes, a variable length
// integer can be.
const MaxVarIntPayload = 9

// messageError describes an issue with a message.
type messageError struct {
	func_ string
	desc  string
}

func (e *messageError) Error() string {
	if e.func_ != "" {
		return fmt.Sprintf("%s: %s", e.func_, e.desc)
	}
	return e.desc
}

func messageErrorf(fn, desc string) error {
	return &messageError{func_: fn, desc: desc}
}

// readElement reads the next fixed-size value from r using little-endian
// byte ordering.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.LittleEndian.Uint32(b[:])
		return nil

	case *chainhash.Hash:
		var b [chainhash.HashSize]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b
		return nil

	case *Signature:
		var b [SignatureSize]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b
		return nil
	}

	return fmt.Errorf("readElement: unsupported type %T", element)
}

// writeElement writes the next fixed-size value to w using little-endian
// byte ordering.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return err

	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return err

	case *Signature:
		_, err := w.Write(e[:])
		return err
	}

	return fmt.Errorf("writeElement: unsupported type %T", element)
}

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64, using the CompactSize encoding shared with the rest of the Dash
// P2P wire protocol.
func ReadVarInt(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return 0, err
	}

	discriminant := b[0]
	switch discriminant {
	case 0xff:
		if _, err := io.ReadFull(r, b[:8]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b[:8]), nil

	case 0xfe:
		if _, err := io.ReadFull(r, b[:4]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b[:4])), nil

	case 0xfd:
		if _, err := io.ReadFull(r, b[:2]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b[:2])), nil

	default:
		return uint64(discriminant), nil
	}
}

// WriteVarInt serializes val to w using the CompactSize variable length
// integer encoding.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}

	if val <= 0xffff {
		var b [3]byte
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(val))
		_, err := w.Write(b[:])
		return err
	}

	if val <= 0xffffffff {
		var b [5]byte
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], uint32(val))
		_, err := w.Write(b[:])
		return err
	}

	var b [9]byte
	b[0] = 0xff
	binary.LittleEndian.PutUint64(b[1:], val)
	_, err := w.Write(b[:])
	return err
}
