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

package dddb

// Named is implemented by descriptors that are looked up by name.
type Named interface {
	Name() string
}

// Family is an ordered collection of descriptors with lookup by name.
// The order of List is the row order of the descriptor table.
type Family[T Named] struct {
	list   []T
	byName map[string]T
}

// NewFamily creates a family holding items in the given order. When
// several items share a name, Get returns the first of them.
func NewFamily[T Named](items []T) *Family[T] {
	f := &Family[T]{
		list:   items,
		byName: make(map[string]T, len(items)),
	}
	for _, it := range items {
		if _, ok := f.byName[it.Name()]; !ok {
			f.byName[it.Name()] = it
		}
	}
	return f
}

// List returns the items of the family. The returned slice must not be
// modified.
func (f *Family[T]) List() []T { return f.list }

// Len returns the number of items in the family.
func (f *Family[T]) Len() int { return len(f.list) }

// Get returns the item named name.
func (f *Family[T]) Get(name string) (T, bool) {
	v, ok := f.byName[name]
	return v, ok
}
