// Package codec implements the little-endian wire format shared by the
// ledger program's instructions and accounts.
//
// A layout is declared once as a Schema: an ordered list of fields, each bound
// to a pointer into the Go value it describes. Encode and Decode walk the same
// list, so the read and write paths cannot drift apart.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// HeaderLen is the opaque account header preceding every field.
const HeaderLen = 8

var (
	// ErrNotInitialized means the buffer is missing or too short to hold the
	// layout. Callers treat it as "zero state", never as a failure.
	ErrNotInitialized = errors.New("account not initialized")
	ErrInvalidOption  = errors.New("invalid option tag")
)

type Kind uint8

const (
	KindU8 Kind = iota + 1
	KindU64
	KindI64
	KindKey
	KindBytes
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU64:
		return "u64"
	case KindI64:
		return "i64"
	case KindKey:
		return "pubkey"
	case KindBytes:
		return "bytes"
	case KindOption:
		return "option"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

type Field struct {
	Name string
	Kind Kind

	u8      *uint8
	u64     *uint64
	i64     *int64
	key     *solana.PublicKey
	bytes   *[]byte
	present *bool
	nested  Schema
}

func U8(name string, p *uint8) Field { return Field{Name: name, Kind: KindU8, u8: p} }
func U64(name string, p *uint64) Field { return Field{Name: name, Kind: KindU64, u64: p} }
func I64(name string, p *int64) Field { return Field{Name: name, Kind: KindI64, i64: p} }
func Key(name string, p *solana.PublicKey) Field { return Field{Name: name, Kind: KindKey, key: p} }

// Bytes is a u32 little-endian length followed by the raw bytes.
func Bytes(name string, p *[]byte) Field { return Field{Name: name, Kind: KindBytes, bytes: p} }

// Option is a one-byte tag (0 none, 1 some) followed by fields when present.
func Option(name string, present *bool, fields ...Field) Field {
	return Field{Name: name, Kind: KindOption, present: present, nested: fields}
}

// Width is the minimum number of bytes the field occupies.
func (f Field) Width() int {
	switch f.Kind {
	case KindU8, KindOption:
		return 1
	case KindU64, KindI64:
		return 8
	case KindKey:
		return solana.PublicKeyLength
	case KindBytes:
		return 4
	}
	return 0
}

type Schema []Field

func (s Schema) MinLen() int {
	n := 0
	for _, f := range s {
		n += f.Width()
	}
	return n
}

func (s Schema) Encode(enc *bin.Encoder) error {
	for _, f := range s {
		if err := f.encode(enc); err != nil {
			return fmt.Errorf("encode %s: %w", f.Name, err)
		}
	}
	return nil
}

func (f Field) encode(enc *bin.Encoder) error {
	switch f.Kind {
	case KindU8:
		return enc.WriteUint8(*f.u8)
	case KindU64:
		return enc.WriteUint64(*f.u64, bin.LE)
	case KindI64:
		return enc.WriteInt64(*f.i64, bin.LE)
	case KindKey:
		return enc.WriteBytes(f.key[:], false)
	case KindBytes:
		if err := enc.WriteUint32(uint32(len(*f.bytes)), bin.LE); err != nil {
			return err
		}
		return enc.WriteBytes(*f.bytes, false)
	case KindOption:
		if !*f.present {
			return enc.WriteUint8(0)
		}
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		return f.nested.Encode(enc)
	}
	return fmt.Errorf("unsupported kind %s", f.Kind)
}

// Decode reads fields in declaration order. Running out of bytes yields
// ErrNotInitialized.
func (s Schema) Decode(dec *bin.Decoder) error {
	for _, f := range s {
		if err := f.decode(dec); err != nil {
			return fmt.Errorf("decode %s: %w", f.Name, err)
		}
	}
	return nil
}

func (f Field) decode(dec *bin.Decoder) error {
	if dec.Remaining() < f.Width() {
		return ErrNotInitialized
	}

	var err error
	switch f.Kind {
	case KindU8:
		*f.u8, err = dec.ReadUint8()
	case KindU64:
		*f.u64, err = dec.ReadUint64(bin.LE)
	case KindI64:
		*f.i64, err = dec.ReadInt64(bin.LE)
	case KindKey:
		var raw []byte
		raw, err = dec.ReadNBytes(solana.PublicKeyLength)
		if err == nil {
			*f.key = solana.PublicKeyFromBytes(raw)
		}
	case KindBytes:
		var n uint32
		n, err = dec.ReadUint32(bin.LE)
		if err != nil {
			return err
		}
		if uint64(dec.Remaining()) < uint64(n) {
			return ErrNotInitialized
		}
		var raw []byte
		raw, err = dec.ReadNBytes(int(n))
		if err == nil {
			*f.bytes = append([]byte(nil), raw...)
		}
	case KindOption:
		var tag uint8
		tag, err = dec.ReadUint8()
		if err != nil {
			return err
		}
		switch tag {
		case 0:
			*f.present = false
			return nil
		case 1:
			*f.present = true
			return f.nested.Decode(dec)
		default:
			return fmt.Errorf("%w: %d", ErrInvalidOption, tag)
		}
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind)
	}
	return err
}

func (s Schema) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := s.Encode(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s Schema) Unmarshal(data []byte) error {
	if len(data) < s.MinLen() {
		return ErrNotInitialized
	}
	return s.Decode(bin.NewBorshDecoder(data))
}

// DecodeAccount skips the account header and decodes the fields of s.
func DecodeAccount(data []byte, s Schema) error {
	if len(data) < HeaderLen+s.MinLen() {
		return ErrNotInitialized
	}
	return s.Unmarshal(data[HeaderLen:])
}

// EncodeAccount produces a full account buffer, header included.
func EncodeAccount(name string, s Schema) ([]byte, error) {
	body, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	d := AccountDiscriminator(name)
	return append(d[:], body...), nil
}

// Instruction encodes instruction data: the global discriminator for name
// followed by the argument fields.
func Instruction(name string, args ...Field) ([]byte, error) {
	body, err := Schema(args).Marshal()
	if err != nil {
		return nil, fmt.Errorf("instruction %s: %w", name, err)
	}
	d := InstructionDiscriminator(name)
	return append(d[:], body...), nil
}
