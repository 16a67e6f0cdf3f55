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

package product

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Element is a node of a product header document.
type Element struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Text     string
	Children []*Element
}

// ParseHeader reads a header document into an element tree and returns
// its root.
func ParseHeader(r io.Reader) (*Element, error) {
	d := xml.NewDecoder(r)
	var stack []*Element
	var root *Element
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("product: parsing header: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := &Element{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, e)
			} else if root == nil {
				root = e
			}
			stack = append(stack, e)
		case xml.EndElement:
			e := stack[len(stack)-1]
			e.Text = strings.TrimSpace(e.Text)
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("product: header has no root element")
	}
	return root, nil
}

// Child returns the first child with the given local name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name.Local == name {
			return c
		}
	}
	return nil
}

// Find follows a path of local names from e and returns the element at
// its end, or nil. The search descends into the first match at each step.
func (e *Element) Find(path ...string) *Element {
	for _, name := range path {
		e = e.Child(name)
	}
	return e
}

// Value returns the text of the element at path, or "".
func (e *Element) Value(path ...string) string {
	if f := e.Find(path...); f != nil {
		return f.Text
	}
	return ""
}

// Leaves calls fn for every element below e without children, passing
// the local names of the path leading to it. Siblings sharing a name get
// their position appended, starting at 1 for the second one.
func (e *Element) Leaves(fn func(path []string, leaf *Element)) {
	e.leaves(nil, fn)
}

func (e *Element) leaves(path []string, fn func([]string, *Element)) {
	seen := make(map[string]int)
	for _, c := range e.Children {
		name := c.Name.Local
		if n := seen[c.Name.Local]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		seen[c.Name.Local]++
		p := append(append([]string(nil), path...), name)
		if len(c.Children) == 0 {
			fn(p, c)
			continue
		}
		c.leaves(p, fn)
	}
}
