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

// Package binx models self-describing binary layouts and decodes records
// from flat binary files described by them. Layouts are read from BinX
// XML schemas: a tree of compound (struct) types, sequences (fixed or
// data-driven element counts) and simple scalar types.
package binx

import (
	"encoding/binary"
	"fmt"
)

// Type is the type of a binary member: a SimpleType, a *CompoundType or a
// *SequenceType.
type Type interface {
	// TypeName returns the name of the type.
	TypeName() string
	// Size returns the size of the type in bytes, or -1 if the size
	// depends on the data.
	Size() int
}

// SimpleType is a scalar type.
type SimpleType int

// The simple types known to BinX.
const (
	Int8 SimpleType = iota + 1
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var simpleTypeNames = [...]string{"", "byte-8", "unsignedByte-8", "short-16", "unsignedShort-16",
	"integer-32", "unsignedInteger-32", "long-64", "unsignedLong-64", "float-32", "double-64"}

var simpleTypeSizes = [...]int{0, 1, 1, 2, 2, 4, 4, 8, 8, 4, 8}

// TypeName returns the BinX element name of the type.
func (t SimpleType) TypeName() string {
	if t < Int8 || t > Float64 {
		return fmt.Sprintf("<%d>", int(t))
	}
	return simpleTypeNames[t]
}

func (t SimpleType) String() string { return t.TypeName() }

// Size returns the size of the type in bytes.
func (t SimpleType) Size() int {
	if t < Int8 || t > Float64 {
		return 0
	}
	return simpleTypeSizes[t]
}

// Unsigned reports whether t is an unsigned integer type.
func (t SimpleType) Unsigned() bool {
	return t == Uint8 || t == Uint16 || t == Uint32 || t == Uint64
}

// Float reports whether t is a floating point type.
func (t SimpleType) Float() bool { return t == Float32 || t == Float64 }

// Member is a named member of a compound type.
type Member struct {
	Name string
	Type Type
	// Count names the sibling member that holds the element count of a
	// variable length sequence. It is empty for all other members.
	Count string
}

// CompoundType is an ordered list of named members.
type CompoundType struct {
	name       string
	members    []Member
	index      map[string]int
	countIndex []int
	// prefix holds the offsets of the members up to and including the
	// first member of variable size.
	prefix []int
	size   int
}

// NewCompoundType creates a compound type. The Count reference of every
// variable length sequence member must name a preceding simple integer
// member.
func NewCompoundType(name string, members []Member) (*CompoundType, error) {
	c := &CompoundType{
		name:       name,
		members:    members,
		index:      make(map[string]int, len(members)),
		countIndex: make([]int, len(members)),
	}
	for i, m := range members {
		if _, ok := c.index[m.Name]; ok {
			return nil, fmt.Errorf("binx: compound %s: duplicate member %s", name, m.Name)
		}
		c.index[m.Name] = i
		c.countIndex[i] = -1
		if s, ok := m.Type.(*SequenceType); ok && s.Length < 0 {
			j, ok := c.index[m.Count]
			if !ok {
				return nil, fmt.Errorf("binx: compound %s: sequence %s has no preceding count member %q", name, m.Name, m.Count)
			}
			st, ok := members[j].Type.(SimpleType)
			if !ok || st.Float() {
				return nil, fmt.Errorf("binx: compound %s: count member %s of %s is not an integer", name, m.Count, m.Name)
			}
			c.countIndex[i] = j
		}
	}
	for _, m := range members {
		c.prefix = append(c.prefix, c.size)
		s := m.Type.Size()
		if s < 0 {
			c.size = -1
			break
		}
		c.size += s
	}
	return c, nil
}

// TypeName returns the name of the compound type.
func (c *CompoundType) TypeName() string { return c.name }

// Size returns the size in bytes, or -1 if a member has a variable size.
func (c *CompoundType) Size() int { return c.size }

// Members returns the members in layout order.
func (c *CompoundType) Members() []Member { return c.members }

// MemberCount returns the number of members.
func (c *CompoundType) MemberCount() int { return len(c.members) }

// Member returns member i.
func (c *CompoundType) Member(i int) Member { return c.members[i] }

// MemberIndex returns the index of the named member, or -1.
func (c *CompoundType) MemberIndex(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// SequenceType is a sequence of elements of one type.
type SequenceType struct {
	name    string
	Element Type
	// Length is the fixed number of elements, or -1 if the count is
	// read from the data.
	Length int
}

// NewSequenceType creates a sequence type. Use length -1 for sequences
// whose element count is stored in the data.
func NewSequenceType(name string, element Type, length int) *SequenceType {
	return &SequenceType{name: name, Element: element, Length: length}
}

// TypeName returns the name of the sequence type.
func (s *SequenceType) TypeName() string { return s.name }

// Size returns the size in bytes, or -1 if it depends on the data.
func (s *SequenceType) Size() int {
	if s.Length < 0 {
		return -1
	}
	es := s.Element.Size()
	if es < 0 {
		return -1
	}
	return s.Length * es
}

// minSize returns the smallest number of bytes a value of type t can
// occupy. Counted sequences may be empty.
func minSize(t Type) int {
	if s := t.Size(); s >= 0 {
		return s
	}
	switch tt := t.(type) {
	case *CompoundType:
		n := 0
		for _, m := range tt.members {
			n += minSize(m.Type)
		}
		return n
	case *SequenceType:
		if tt.Length < 0 {
			return 0
		}
		return tt.Length * minSize(tt.Element)
	}
	return 0
}

// DataFormat is a named binary layout.
type DataFormat struct {
	Name      string
	Type      *CompoundType
	ByteOrder binary.ByteOrder
}
