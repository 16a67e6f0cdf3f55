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

import (
	"fmt"
	"image/color"
)

// FlagDescriptor describes one bit flag of a flag coding.
type FlagDescriptor struct {
	name         string
	mask         int64
	visible      bool
	color        *color.RGBA
	transparency float64
	description  string
}

// Name returns the flag name, which is unique within its family.
func (f *FlagDescriptor) Name() string { return f.name }

// Mask returns the bit mask of the flag.
func (f *FlagDescriptor) Mask() int64 { return f.mask }

func (f *FlagDescriptor) Visible() bool { return f.visible }
func (f *FlagDescriptor) Transparency() float64 { return f.transparency }
func (f *FlagDescriptor) Description() string { return f.description }

// Color returns the display color, or nil if none is defined.
func (f *FlagDescriptor) Color() *color.RGBA { return f.color }

// IsSet reports whether the flag is set in value.
func (f *FlagDescriptor) IsSet(value int64) bool { return value&f.mask == f.mask }

func parseFlagDescriptor(row []string) (*FlagDescriptor, error) {
	f := new(FlagDescriptor)
	var err error
	if f.visible, err = parseBoolean(column(row, 0), false); err != nil {
		return nil, err
	}
	f.name = parseString(column(row, 1), "")
	if f.name == "" {
		return nil, fmt.Errorf("dddb: flag row without name")
	}
	if f.mask, err = parseHex(column(row, 2), 0); err != nil {
		return nil, err
	}
	if f.color, err = parseColor(column(row, 3), nil); err != nil {
		return nil, err
	}
	if f.transparency, err = parseDouble(column(row, 4), 0.5); err != nil {
		return nil, err
	}
	f.description = parseString(column(row, 5), "")
	return f, nil
}
