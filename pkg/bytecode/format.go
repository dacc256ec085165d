// Binary serialization for .brc bytecode files, grounded on the
// teacher's .sg format (pkg/bytecode/format.go): a magic-numbered,
// versioned header followed by length-prefixed sections, read and
// written with encoding/binary. The section layout differs because the
// chunk itself differs — a packed byte stream plus side tables instead
// of a slice of fixed-width instructions — but the framing idiom (magic,
// version, flags, then count-prefixed repetition) is unchanged.
//
// Binary Format Layout:
//
//	[Header]
//	  Magic (4 bytes): "BRMB"
//	  Version (4 bytes): format version, currently 1
//	  Flags (4 bytes): reserved, always 0
//
//	[Chunk] (recursive: top-level chunk, then once per function constant)
//	  Code length (4 bytes) + code bytes
//	  Lines count (4 bytes) + one int32 per code byte
//	  Constants count (4 bytes) + constants (see writeConstant)
//	  KeyPaths count (4 bytes) + each: string count + strings
//	  EventBindings / EventBroadcasts are not written at all, so a decoded
//	  chunk carries no event bindings or broadcasts.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicNumber   uint32 = 0x42524D42 // "BRMB"
	formatVersion uint32 = 1
	formatFlags   uint32 = 0
)

const (
	constTagNumber   byte = 0x01
	constTagString   byte = 0x02
	constTagBoolean  byte = 0x03
	constTagNull     byte = 0x04
	constTagFunction byte = 0x05
)

// Encode serializes chunk to w in .brc format.
func Encode(chunk *Chunk, w io.Writer) error {
	if err := writeHeader(w); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return writeChunk(w, chunk)
}

// Decode reads a .brc file from r and reconstructs its Chunk.
func Decode(r io.Reader) (*Chunk, error) {
	version, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported bytecode version %d (expected %d)", version, formatVersion)
	}
	return readChunk(r)
}

func writeHeader(w io.Writer) error {
	for _, v := range []uint32{magicNumber, formatVersion, formatFlags} {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readHeader(r io.Reader) (uint32, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return 0, err
	}
	if magic != magicNumber {
		return 0, fmt.Errorf("invalid magic number 0x%08X (expected 0x%08X)", magic, magicNumber)
	}
	var version, flags uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return 0, err
	}
	if err := binary.Read(r, binary.BigEndian, &flags); err != nil {
		return 0, err
	}
	return version, nil
}

func writeChunk(w io.Writer, c *Chunk) error {
	if err := writeBytes(w, c.Code); err != nil {
		return fmt.Errorf("write code: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.Lines))); err != nil {
		return err
	}
	for _, l := range c.Lines {
		if err := binary.Write(w, binary.BigEndian, int32(l)); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.Constants))); err != nil {
		return err
	}
	for i, cst := range c.Constants {
		if err := writeConstant(w, cst); err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.KeyPaths))); err != nil {
		return err
	}
	for _, path := range c.KeyPaths {
		if err := writeStrings(w, path); err != nil {
			return err
		}
	}
	return nil
}

func readChunk(r io.Reader) (*Chunk, error) {
	code, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("read code: %w", err)
	}
	var lineCount uint32
	if err := binary.Read(r, binary.BigEndian, &lineCount); err != nil {
		return nil, err
	}
	lines := make([]int, lineCount)
	for i := range lines {
		var l int32
		if err := binary.Read(r, binary.BigEndian, &l); err != nil {
			return nil, err
		}
		lines[i] = int(l)
	}

	var constCount uint32
	if err := binary.Read(r, binary.BigEndian, &constCount); err != nil {
		return nil, err
	}
	constants := make([]Constant, constCount)
	for i := range constants {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		constants[i] = c
	}

	var pathCount uint32
	if err := binary.Read(r, binary.BigEndian, &pathCount); err != nil {
		return nil, err
	}
	paths := make([][]string, pathCount)
	for i := range paths {
		p, err := readStrings(r)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}

	return &Chunk{Code: code, Lines: lines, Constants: constants, KeyPaths: paths}, nil
}

func writeConstant(w io.Writer, c Constant) error {
	switch c.Kind {
	case ConstNumber:
		if err := binary.Write(w, binary.BigEndian, constTagNumber); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, c.Number)
	case ConstString:
		if err := binary.Write(w, binary.BigEndian, constTagString); err != nil {
			return err
		}
		return writeString(w, c.Str)
	case ConstBoolean:
		if err := binary.Write(w, binary.BigEndian, constTagBoolean); err != nil {
			return err
		}
		var b byte
		if c.Boolean {
			b = 1
		}
		return binary.Write(w, binary.BigEndian, b)
	case ConstNull:
		return binary.Write(w, binary.BigEndian, constTagNull)
	case ConstFunction:
		if err := binary.Write(w, binary.BigEndian, constTagFunction); err != nil {
			return err
		}
		if err := writeString(w, c.FunctionName); err != nil {
			return err
		}
		if err := writeStrings(w, c.FunctionParams); err != nil {
			return err
		}
		return writeChunk(w, c.FunctionChunk)
	default:
		return fmt.Errorf("unsupported constant kind %d", c.Kind)
	}
}

func readConstant(r io.Reader) (Constant, error) {
	var tag byte
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return Constant{}, err
	}
	switch tag {
	case constTagNumber:
		var n float64
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstNumber, Number: n}, nil
	case constTagString:
		s, err := readString(r)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstString, Str: s}, nil
	case constTagBoolean:
		var b byte
		if err := binary.Read(r, binary.BigEndian, &b); err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstBoolean, Boolean: b != 0}, nil
	case constTagNull:
		return Constant{Kind: ConstNull}, nil
	case constTagFunction:
		name, err := readString(r)
		if err != nil {
			return Constant{}, err
		}
		params, err := readStrings(r)
		if err != nil {
			return Constant{}, err
		}
		body, err := readChunk(r)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstFunction, FunctionName: name, FunctionParams: params, FunctionChunk: body}, nil
	default:
		return Constant{}, fmt.Errorf("unknown constant tag 0x%02X", tag)
	}
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeStrings(w io.Writer, ss []string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
