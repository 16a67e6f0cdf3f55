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
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

// Options modify the layout built from a schema.
type Options struct {
	// Rename maps schema member names to the names used by the layout.
	Rename map[string]string
	// InlineStructs lists struct members whose members are spliced into
	// the parent compound in place of the struct.
	InlineStructs []string
	// InlineArrays lists fixed length arrays of simple type that are
	// replaced by one member per element, named <name>_<index>.
	InlineArrays []string
}

// node is a generic BinX XML element.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []node     `xml:",any"`
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

var simpleTypes = map[string]SimpleType{
	"byte-8":             Int8,
	"character-8":        Int8,
	"unsignedByte-8":     Uint8,
	"short-16":           Int16,
	"unsignedShort-16":   Uint16,
	"integer-32":         Int32,
	"unsignedInteger-32": Uint32,
	"long-64":            Int64,
	"unsignedLong-64":    Uint64,
	"float-32":           Float32,
	"double-64":          Float64,
}

// builder resolves the types of one schema.
type builder struct {
	opts          Options
	defs          map[string]*node
	resolved      map[string]Type
	resolving     map[string]bool
	inlineStructs map[string]bool
	inlineArrays  map[string]bool
}

// ReadFormat reads a BinX schema and builds the named data format. The
// byte order is always little-endian.
func ReadFormat(r io.Reader, name string, opts Options) (*DataFormat, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("binx: parsing schema for %s: %w", name, err)
	}
	b := &builder{
		opts:          opts,
		defs:          make(map[string]*node),
		resolved:      make(map[string]Type),
		resolving:     make(map[string]bool),
		inlineStructs: make(map[string]bool),
		inlineArrays:  make(map[string]bool),
	}
	for _, s := range opts.InlineStructs {
		b.inlineStructs[s] = true
	}
	for _, s := range opts.InlineArrays {
		b.inlineArrays[s] = true
	}
	if defs := root.child("definitions"); defs != nil {
		for i := range defs.Nodes {
			d := &defs.Nodes[i]
			if d.XMLName.Local != "defineType" {
				continue
			}
			b.defs[d.attr("typeName")] = d
		}
	}
	ds := root.child("dataset")
	if ds == nil || len(ds.Nodes) != 1 {
		return nil, fmt.Errorf("binx: schema for %s: dataset must hold exactly one type", name)
	}
	t, err := b.typeOf(&ds.Nodes[0])
	if err != nil {
		return nil, fmt.Errorf("binx: schema for %s: %w", name, err)
	}
	ct, ok := t.(*CompoundType)
	if !ok {
		return nil, fmt.Errorf("binx: schema for %s: dataset type is not a struct", name)
	}
	return &DataFormat{Name: name, Type: ct, ByteOrder: binary.LittleEndian}, nil
}

func (b *builder) rename(name string) string {
	if n, ok := b.opts.Rename[name]; ok {
		return n
	}
	return name
}

// typeOf resolves the type described by element n.
func (b *builder) typeOf(n *node) (Type, error) {
	local := n.XMLName.Local
	if st, ok := simpleTypes[local]; ok {
		return st, nil
	}
	switch local {
	case "useType":
		return b.named(n.attr("typeName"))
	case "struct":
		return b.compound("", n)
	case "arrayFixed":
		elem, count, err := b.arrayParts(n)
		if err != nil {
			return nil, err
		}
		return NewSequenceType(n.attr("varName"), elem, count), nil
	case "arrayVariable":
		elem, _, err := b.arrayParts(n)
		if err != nil {
			return nil, err
		}
		return NewSequenceType(n.attr("varName"), elem, -1), nil
	}
	return nil, fmt.Errorf("unsupported element <%s>", local)
}

// named resolves a type defined with defineType.
func (b *builder) named(name string) (Type, error) {
	if t, ok := b.resolved[name]; ok {
		return t, nil
	}
	d, ok := b.defs[name]
	if !ok {
		return nil, fmt.Errorf("undefined type %q", name)
	}
	if b.resolving[name] {
		return nil, fmt.Errorf("recursive type %q", name)
	}
	b.resolving[name] = true
	defer delete(b.resolving, name)
	if len(d.Nodes) != 1 {
		return nil, fmt.Errorf("type %q must define exactly one type", name)
	}
	var t Type
	var err error
	if d.Nodes[0].XMLName.Local == "struct" {
		t, err = b.compound(name, &d.Nodes[0])
	} else {
		t, err = b.typeOf(&d.Nodes[0])
	}
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", name, err)
	}
	b.resolved[name] = t
	return t, nil
}

// arrayParts returns the element type and the fixed element count of an
// array element.
func (b *builder) arrayParts(n *node) (Type, int, error) {
	var elem Type
	count := 1
	for i := range n.Nodes {
		c := &n.Nodes[i]
		switch c.XMLName.Local {
		case "sizeRef":
		case "dim":
			for d := c; d != nil; d = d.child("dim") {
				from, _ := strconv.Atoi(d.attr("indexFrom"))
				to, err := strconv.Atoi(d.attr("indexTo"))
				if err != nil {
					if n.XMLName.Local == "arrayVariable" {
						break
					}
					return nil, 0, fmt.Errorf("array %s: invalid dimension: %w", n.attr("varName"), err)
				}
				count *= to - from + 1
			}
		default:
			if elem != nil {
				return nil, 0, fmt.Errorf("array %s: more than one element type", n.attr("varName"))
			}
			var err error
			if elem, err = b.typeOf(c); err != nil {
				return nil, 0, err
			}
		}
	}
	if elem == nil {
		return nil, 0, fmt.Errorf("array %s: no element type", n.attr("varName"))
	}
	return elem, count, nil
}

// compound builds a struct type, applying renames and inlining.
func (b *builder) compound(name string, n *node) (*CompoundType, error) {
	var members []Member
	for i := range n.Nodes {
		c := &n.Nodes[i]
		schemaName := c.attr("varName")
		t, err := b.typeOf(c)
		if err != nil {
			return nil, err
		}
		memberName := b.rename(schemaName)
		var count string
		if c.XMLName.Local == "arrayVariable" {
			ref := c.child("sizeRef")
			if ref == nil || len(ref.Nodes) != 1 {
				return nil, fmt.Errorf("array %s: missing sizeRef", schemaName)
			}
			st, ok := simpleTypes[ref.Nodes[0].XMLName.Local]
			if !ok || st.Float() {
				return nil, fmt.Errorf("array %s: sizeRef must be an integer type", schemaName)
			}
			count = ref.Nodes[0].attr("varName")
			if count == "" {
				count = schemaName + "_Counter"
			}
			count = b.rename(count)
			members = append(members, Member{Name: count, Type: st})
		}
		if ct, ok := t.(*CompoundType); ok && (b.inlineStructs[schemaName] || b.inlineStructs[memberName]) {
			members = append(members, ct.Members()...)
			continue
		}
		if st, ok := t.(*SequenceType); ok && st.Length >= 0 && (b.inlineArrays[schemaName] || b.inlineArrays[memberName]) {
			simple, ok := st.Element.(SimpleType)
			if !ok {
				return nil, fmt.Errorf("array %s: only arrays of simple type can be inlined", schemaName)
			}
			for j := 0; j < st.Length; j++ {
				members = append(members, Member{Name: fmt.Sprintf("%s_%d", memberName, j), Type: simple})
			}
			continue
		}
		members = append(members, Member{Name: memberName, Type: t, Count: count})
	}
	return NewCompoundType(name, members)
}
