// Package state defines the two program records and their on-ledger layout:
// an 8-byte discriminator followed by borsh-encoded fields in declaration order.
package state

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/types"
)

// DiscriminatorLen is the size of the record type tag.
const DiscriminatorLen = 8

// Discriminator is sha256("account:<Name>")[:8].
type Discriminator [DiscriminatorLen]byte

var (
	ConfigDiscriminator         = Discriminator{252, 166, 185, 239, 186, 79, 212, 152}
	PaymentRequestDiscriminator = Discriminator{27, 20, 202, 96, 101, 242, 124, 69}
)

var le = binary.LittleEndian

func writeDiscriminator(enc *bin.Encoder, d Discriminator) error {
	return enc.WriteBytes(d[:], false)
}

func readDiscriminator(dec *bin.Decoder, want Discriminator) error {
	if dec.Remaining() < DiscriminatorLen {
		return types.ErrAccountDidNotDeserialize.WithData("account data shorter than discriminator")
	}
	got, err := dec.ReadNBytes(DiscriminatorLen)
	if err != nil {
		return types.ErrAccountDidNotDeserialize.WithData(err.Error())
	}
	if !bytes.Equal(got, want[:]) {
		return types.ErrAccountDiscriminatorMismatch.WithData(fmt.Sprintf("wanted %v, got %v", want[:], got))
	}
	return nil
}

func writeKey(enc *bin.Encoder, k solana.PublicKey) error {
	return enc.WriteBytes(k[:], false)
}

func readKey(dec *bin.Decoder, field string) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, fieldErr(field, err)
	}
	return solana.PublicKeyFromBytes(b), nil
}

// writeString writes a u32 length prefix followed by the bytes.
func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), le); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

// readString rejects a length prefix larger than max or than the remaining
// data before reading the body.
func readString(dec *bin.Decoder, field string, max int) (string, error) {
	n, err := dec.ReadUint32(le)
	if err != nil {
		return "", fieldErr(field, err)
	}
	if int64(n) > int64(max) {
		return "", fieldErr(field, fmt.Errorf("length prefix %d exceeds max %d", n, max))
	}
	if int(n) > dec.Remaining() {
		return "", fieldErr(field, fmt.Errorf("length prefix %d exceeds remaining %d bytes", n, dec.Remaining()))
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", fieldErr(field, err)
	}
	if !utf8.Valid(b) {
		return "", fieldErr(field, fmt.Errorf("invalid utf-8"))
	}
	return string(b), nil
}

func readBool(dec *bin.Decoder, field string) (bool, error) {
	b, err := dec.ReadUint8()
	if err != nil {
		return false, fieldErr(field, err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fieldErr(field, fmt.Errorf("invalid bool byte %d", b))
	}
}

func writeBool(enc *bin.Encoder, v bool) error {
	if v {
		return enc.WriteUint8(1)
	}
	return enc.WriteUint8(0)
}

func fieldErr(field string, err error) error {
	return types.ErrAccountDidNotDeserialize.WithData(fmt.Sprintf("%s: %v", field, err))
}

// marshal encodes v and pads the result with zeros up to space.
func marshal(space int, fn func(enc *bin.Encoder) error) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := fn(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	if buf.Len() > space {
		return nil, fmt.Errorf("encoded record is %d bytes, account space is %d", buf.Len(), space)
	}
	out := make([]byte, space)
	copy(out, buf.Bytes())
	return out, nil
}
