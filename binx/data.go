/*
Copyright © 2024 the SMOS-Box authors.
This file is part of SMOS-Box.

SMOS-Box is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SMOS-Box is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SMOS-Box.  If not, see <http://www.gnu.org/licenses/>.
*/

package binx

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// TypeMismatchError is returned when a member is read with an accessor
// that does not match its declared type.
type TypeMismatchError struct {
	Member string
	Have   Type
	Want   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("binx: member %s has type %s, cannot read it as %s", e.Member, e.Have.TypeName(), e.Want)
}

type dataContext struct {
	r     io.ReaderAt
	order binary.ByteOrder
	// size is the length of the data, or -1 if r does not report it.
	size int64
	buf  [8]byte
}

// sizer is implemented by readers that know their length, such as
// *bytes.Reader and *io.SectionReader.
type sizer interface {
	Size() int64
}

func (ctx *dataContext) read(off int64, n int) ([]byte, error) {
	b := ctx.buf[:n]
	if _, err := ctx.r.ReadAt(b, off); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("binx: reading %d bytes at offset %d: %w", n, off, err)
	}
	return b, nil
}

// readRaw reads a simple value and returns its bits widened to 64 bits.
func (ctx *dataContext) readRaw(off int64, t SimpleType) (uint64, error) {
	b, err := ctx.read(off, t.Size())
	if err != nil {
		return 0, err
	}
	switch t.Size() {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(ctx.order.Uint16(b)), nil
	case 4:
		return uint64(ctx.order.Uint32(b)), nil
	default:
		return ctx.order.Uint64(b), nil
	}
}

// readValue reads a simple value and converts it to float64 honoring
// its signedness.
func (ctx *dataContext) readValue(off int64, t SimpleType) (float64, error) {
	raw, err := ctx.readRaw(off, t)
	if err != nil {
		return 0, err
	}
	switch t {
	case Int8:
		return float64(int8(raw)), nil
	case Int16:
		return float64(int16(raw)), nil
	case Int32:
		return float64(int32(raw)), nil
	case Int64:
		return float64(int64(raw)), nil
	case Float32:
		return float64(math.Float32frombits(uint32(raw))), nil
	case Float64:
		return math.Float64frombits(raw), nil
	}
	return float64(raw), nil
}

// checkCount returns an error if n elements of type t starting at off
// cannot fit in the rest of the data.
func (ctx *dataContext) checkCount(name string, n int, t Type, off int64) error {
	es := int64(minSize(t))
	if ctx.size < 0 || es == 0 || n == 0 {
		return nil
	}
	if rest := ctx.size - off; rest < 0 || int64(n) > rest/es {
		return fmt.Errorf("binx: %s: %d elements of at least %d bytes at offset %d exceed the data size %d: %w",
			name, n, es, off, ctx.size, io.ErrUnexpectedEOF)
	}
	return nil
}

// sizeOf returns the size of a value of type t stored at off.
func (ctx *dataContext) sizeOf(t Type, off int64) (int64, error) {
	if s := t.Size(); s >= 0 {
		return int64(s), nil
	}
	switch tt := t.(type) {
	case *CompoundType:
		return newCompoundData(ctx, tt, "", off).Size()
	case *SequenceType:
		// Only fixed length sequences of variable sized elements get here;
		// counted sequences are sized by their parent.
		return newSequenceData(ctx, tt, off, tt.Length).Size()
	}
	return 0, fmt.Errorf("binx: cannot size type %s", t.TypeName())
}

// CompoundData is a compound record at a position in the data.
type CompoundData struct {
	ctx  *dataContext
	typ  *CompoundType
	name string
	pos  int64
	// offsets[i] is the position of member i for all i < len(offsets),
	// filled on demand past the fixed size prefix of the type.
	offsets []int64
	size    int64
}

// Open returns the top-level record of a data block with the given format.
func Open(format *DataFormat, r io.ReaderAt) *CompoundData {
	ctx := &dataContext{r: r, order: format.ByteOrder, size: -1}
	if s, ok := r.(sizer); ok {
		ctx.size = s.Size()
	}
	return newCompoundData(ctx, format.Type, format.Name, 0)
}

func newCompoundData(ctx *dataContext, t *CompoundType, name string, pos int64) *CompoundData {
	return &CompoundData{ctx: ctx, typ: t, name: name, pos: pos, size: -1}
}

// Name returns the member name under which the record was reached.
func (c *CompoundData) Name() string { return c.name }

// Type returns the type of the record.
func (c *CompoundData) Type() *CompoundType { return c.typ }

// Offset returns the position of the record in the data.
func (c *CompoundData) Offset() int64 { return c.pos }

// MemberIndex returns the index of the named member, or -1.
func (c *CompoundData) MemberIndex(name string) int { return c.typ.MemberIndex(name) }

// memberOffset returns the position of member i, resolving the sizes of
// the preceding members as needed.
func (c *CompoundData) memberOffset(i int) (int64, error) {
	prefix := c.typ.prefix
	if i < len(prefix) {
		return c.pos + int64(prefix[i]), nil
	}
	if len(c.offsets) == 0 {
		for _, p := range prefix {
			c.offsets = append(c.offsets, c.pos+int64(p))
		}
	}
	for k := len(c.offsets) - 1; k < i; k++ {
		off := c.offsets[k]
		size, err := c.memberSize(k, off)
		if err != nil {
			return 0, err
		}
		c.offsets = append(c.offsets, off+size)
	}
	return c.offsets[i], nil
}

func (c *CompoundData) memberSize(k int, off int64) (int64, error) {
	m := c.typ.members[k]
	if st, ok := m.Type.(*SequenceType); ok && st.Length < 0 {
		n, err := c.count(k)
		if err != nil {
			return 0, err
		}
		return newSequenceData(c.ctx, st, off, n).Size()
	}
	return c.ctx.sizeOf(m.Type, off)
}

// count reads the element count of the counted sequence member k.
func (c *CompoundData) count(k int) (int, error) {
	j := c.typ.countIndex[k]
	off, err := c.memberOffset(j)
	if err != nil {
		return 0, err
	}
	raw, err := c.ctx.readRaw(off, c.typ.members[j].Type.(SimpleType))
	if err != nil {
		return 0, err
	}
	return int(raw), nil
}

// Size returns the size of the record in bytes.
func (c *CompoundData) Size() (int64, error) {
	if s := c.typ.Size(); s >= 0 {
		return int64(s), nil
	}
	if c.size >= 0 {
		return c.size, nil
	}
	n := len(c.typ.members)
	if n == 0 {
		return 0, nil
	}
	last, err := c.memberOffset(n - 1)
	if err != nil {
		return 0, err
	}
	size, err := c.memberSize(n-1, last)
	if err != nil {
		return 0, err
	}
	c.size = last + size - c.pos
	return c.size, nil
}

func (c *CompoundData) simple(i int, want string, ok func(SimpleType) bool) (int64, SimpleType, error) {
	if i < 0 || i >= len(c.typ.members) {
		return 0, 0, fmt.Errorf("binx: %s: member index %d out of range", c.typ.name, i)
	}
	m := c.typ.members[i]
	st, isSimple := m.Type.(SimpleType)
	if !isSimple || !ok(st) {
		return 0, 0, &TypeMismatchError{Member: m.Name, Have: m.Type, Want: want}
	}
	off, err := c.memberOffset(i)
	return off, st, err
}

func width(n int) func(SimpleType) bool {
	return func(t SimpleType) bool { return !t.Float() && t.Size() == n }
}

// Int8 reads 8-bit integer member i. Unsigned members are returned with
// their bits unchanged.
func (c *CompoundData) Int8(i int) (int8, error) {
	off, st, err := c.simple(i, "int8", width(1))
	if err != nil {
		return 0, err
	}
	raw, err := c.ctx.readRaw(off, st)
	return int8(raw), err
}

// Int16 reads 16-bit integer member i.
func (c *CompoundData) Int16(i int) (int16, error) {
	off, st, err := c.simple(i, "int16", width(2))
	if err != nil {
		return 0, err
	}
	raw, err := c.ctx.readRaw(off, st)
	return int16(raw), err
}

// Int32 reads 32-bit integer member i.
func (c *CompoundData) Int32(i int) (int32, error) {
	off, st, err := c.simple(i, "int32", width(4))
	if err != nil {
		return 0, err
	}
	raw, err := c.ctx.readRaw(off, st)
	return int32(raw), err
}

// Int64 reads 64-bit integer member i.
func (c *CompoundData) Int64(i int) (int64, error) {
	off, st, err := c.simple(i, "int64", width(8))
	if err != nil {
		return 0, err
	}
	raw, err := c.ctx.readRaw(off, st)
	return int64(raw), err
}

// Float32 reads float member i.
func (c *CompoundData) Float32(i int) (float32, error) {
	off, st, err := c.simple(i, "float32", func(t SimpleType) bool { return t == Float32 })
	if err != nil {
		return 0, err
	}
	raw, err := c.ctx.readRaw(off, st)
	return math.Float32frombits(uint32(raw)), err
}

// Float64 reads double member i.
func (c *CompoundData) Float64(i int) (float64, error) {
	off, st, err := c.simple(i, "float64", func(t SimpleType) bool { return t == Float64 })
	if err != nil {
		return 0, err
	}
	raw, err := c.ctx.readRaw(off, st)
	return math.Float64frombits(raw), err
}

// Value reads simple member i of any type as a float64, interpreting
// unsigned members as unsigned.
func (c *CompoundData) Value(i int) (float64, error) {
	off, st, err := c.simple(i, "number", func(SimpleType) bool { return true })
	if err != nil {
		return 0, err
	}
	return c.ctx.readValue(off, st)
}

// Compound returns compound member i.
func (c *CompoundData) Compound(i int) (*CompoundData, error) {
	if i < 0 || i >= len(c.typ.members) {
		return nil, fmt.Errorf("binx: %s: member index %d out of range", c.typ.name, i)
	}
	m := c.typ.members[i]
	ct, ok := m.Type.(*CompoundType)
	if !ok {
		return nil, &TypeMismatchError{Member: m.Name, Have: m.Type, Want: "compound"}
	}
	off, err := c.memberOffset(i)
	if err != nil {
		return nil, err
	}
	return newCompoundData(c.ctx, ct, m.Name, off), nil
}

// Sequence returns sequence member i.
func (c *CompoundData) Sequence(i int) (*SequenceData, error) {
	if i < 0 || i >= len(c.typ.members) {
		return nil, fmt.Errorf("binx: %s: member index %d out of range", c.typ.name, i)
	}
	m := c.typ.members[i]
	st, ok := m.Type.(*SequenceType)
	if !ok {
		return nil, &TypeMismatchError{Member: m.Name, Have: m.Type, Want: "sequence"}
	}
	off, err := c.memberOffset(i)
	if err != nil {
		return nil, err
	}
	n := st.Length
	if n < 0 {
		if n, err = c.count(i); err != nil {
			return nil, err
		}
		if err = c.ctx.checkCount(m.Name, n, st.Element, off); err != nil {
			return nil, err
		}
	}
	return newSequenceData(c.ctx, st, off, n), nil
}

// SequenceData is a sequence at a position in the data.
type SequenceData struct {
	ctx *dataContext
	typ *SequenceType
	pos int64
	n   int
	// offsets[i] is the position of element i for all i < len(offsets)
	// when elements have a variable size.
	offsets []int64
	size    int64
}

func newSequenceData(ctx *dataContext, t *SequenceType, pos int64, n int) *SequenceData {
	return &SequenceData{ctx: ctx, typ: t, pos: pos, n: n, offsets: []int64{pos}, size: -1}
}

// Type returns the type of the sequence.
func (s *SequenceData) Type() *SequenceType { return s.typ }

// Len returns the number of elements.
func (s *SequenceData) Len() int { return s.n }

// Offset returns the position of the sequence in the data.
func (s *SequenceData) Offset() int64 { return s.pos }

// elementOffset returns the position of element i. Elements of fixed size
// are located directly; otherwise the sizes of the preceding elements are
// accumulated and remembered, which makes sequential access cheap.
func (s *SequenceData) elementOffset(i int) (int64, error) {
	if i < 0 || i >= s.n {
		return 0, fmt.Errorf("binx: sequence %s: index %d out of range [0,%d)", s.typ.name, i, s.n)
	}
	if es := s.typ.Element.Size(); es >= 0 {
		return s.pos + int64(i)*int64(es), nil
	}
	for k := len(s.offsets) - 1; k < i; k++ {
		off := s.offsets[k]
		size, err := s.ctx.sizeOf(s.typ.Element, off)
		if err != nil {
			return 0, err
		}
		s.offsets = append(s.offsets, off+size)
	}
	return s.offsets[i], nil
}

// Size returns the size of the sequence in bytes.
func (s *SequenceData) Size() (int64, error) {
	if es := s.typ.Element.Size(); es >= 0 {
		return int64(s.n) * int64(es), nil
	}
	if s.size >= 0 {
		return s.size, nil
	}
	if s.n == 0 {
		return 0, nil
	}
	last, err := s.elementOffset(s.n - 1)
	if err != nil {
		return 0, err
	}
	size, err := s.ctx.sizeOf(s.typ.Element, last)
	if err != nil {
		return 0, err
	}
	s.size = last + size - s.pos
	return s.size, nil
}

// Compound returns element i of a sequence of compounds.
func (s *SequenceData) Compound(i int) (*CompoundData, error) {
	ct, ok := s.typ.Element.(*CompoundType)
	if !ok {
		return nil, &TypeMismatchError{Member: s.typ.name, Have: s.typ.Element, Want: "compound"}
	}
	off, err := s.elementOffset(i)
	if err != nil {
		return nil, err
	}
	return newCompoundData(s.ctx, ct, s.typ.name, off), nil
}

// Value returns element i of a sequence of simple values as a float64.
func (s *SequenceData) Value(i int) (float64, error) {
	st, ok := s.typ.Element.(SimpleType)
	if !ok {
		return 0, &TypeMismatchError{Member: s.typ.name, Have: s.typ.Element, Want: "number"}
	}
	off, err := s.elementOffset(i)
	if err != nil {
		return 0, err
	}
	return s.ctx.readValue(off, st)
}
