package enc

import (
	"encoding/binary"
	"fmt"
)

// Builder accumulates a canonical fixed-layout encoding.
//
// Integers are little-endian. Variable-length byte strings are framed with a
// uvarint length prefix. The zero value is ready to use. Builder never fails;
// layout mistakes surface as hash mismatches in tests, not runtime errors.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder with capacity preallocated for sizeHint bytes.
func NewBuilder(sizeHint int) *Builder {
	return &Builder{buf: make([]byte, 0, sizeHint)}
}

func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) U32(v uint32) *Builder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	return b
}

func (b *Builder) U64(v uint64) *Builder {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
	return b
}

func (b *Builder) I64(v int64) *Builder {
	return b.U64(uint64(v))
}

func (b *Builder) Hash(h Hash) *Builder {
	b.buf = append(b.buf, h[:]...)
	return b
}

// Raw appends bytes verbatim. The caller is responsible for fixed-width
// framing; use Frame for variable-length data.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Frame appends a uvarint length prefix followed by the bytes.
func (b *Builder) Frame(p []byte) *Builder {
	b.buf = binary.AppendUvarint(b.buf, uint64(len(p)))
	b.buf = append(b.buf, p...)
	return b
}

// Str appends a string with Frame semantics.
func (b *Builder) Str(s string) *Builder {
	return b.Frame([]byte(s))
}

// Bytes returns the accumulated encoding. The returned slice aliases the
// builder's buffer; callers must not retain it across further appends.
func (b *Builder) Bytes() []byte { return b.buf }

// Len returns the current encoded length.
func (b *Builder) Len() int { return len(b.buf) }

// Sum returns DomainHash(domain, encoding).
func (b *Builder) Sum(domain string) Hash {
	return DomainHash(domain, b.buf)
}

func errHashLength(got int) error {
	return fmt.Errorf("enc: hash must be 32 bytes, got %d", got)
}
