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
	"math"
	"strings"
)

// MemberDescriptor holds export metadata for one binary member of a
// format that cannot be derived from the band descriptors.
type MemberDescriptor struct {
	name          string
	variableName  string
	dimensions    []string
	gridPointData bool
	unsigned      bool
	unsignedSet   bool
	standardName  string
	validMin      float64
	validMax      float64
	flagMasks     []int64
	flagValues    []int64
	flagMeanings  string
}

// Name returns the binary member name.
func (m *MemberDescriptor) Name() string { return m.name }

// VariableName returns the name of the output variable, which defaults to
// the member name.
func (m *MemberDescriptor) VariableName() string { return m.variableName }

// Dimensions returns the output dimension names, or nil if they should be
// derived from the member's position in the binary layout.
func (m *MemberDescriptor) Dimensions() []string { return m.dimensions }

// GridPointData reports whether the member is exported at all.
func (m *MemberDescriptor) GridPointData() bool { return m.gridPointData }

// Unsigned returns the unsigned marker and whether the table sets it
// explicitly.
func (m *MemberDescriptor) Unsigned() (unsigned, ok bool) { return m.unsigned, m.unsignedSet }

func (m *MemberDescriptor) StandardName() string { return m.standardName }
func (m *MemberDescriptor) ValidMin() float64 { return m.validMin }
func (m *MemberDescriptor) ValidMax() float64 { return m.validMax }
func (m *MemberDescriptor) HasValidMin() bool { return !math.IsNaN(m.validMin) }
func (m *MemberDescriptor) HasValidMax() bool { return !math.IsNaN(m.validMax) }

// FlagMasks, FlagValues and FlagMeanings are parallel lists.
func (m *MemberDescriptor) FlagMasks() []int64 { return m.flagMasks }
func (m *MemberDescriptor) FlagValues() []int64 { return m.flagValues }
func (m *MemberDescriptor) FlagMeanings() string { return m.flagMeanings }

func parseMemberDescriptor(row []string) (*MemberDescriptor, error) {
	m := new(MemberDescriptor)
	m.name = parseString(column(row, 0), "")
	if m.name == "" {
		return nil, fmt.Errorf("dddb: member row without name")
	}
	m.variableName = parseString(column(row, 1), m.name)
	m.dimensions = parseList(column(row, 2))
	var err error
	if m.gridPointData, err = parseBoolean(column(row, 3), true); err != nil {
		return nil, err
	}
	if t := column(row, 4); strings.TrimSpace(t) != Wildcard {
		if m.unsigned, err = parseBoolean(t, false); err != nil {
			return nil, err
		}
		m.unsignedSet = true
	}
	m.standardName = parseString(column(row, 5), "")
	if m.validMin, err = parseDouble(column(row, 6), math.NaN()); err != nil {
		return nil, err
	}
	if m.validMax, err = parseDouble(column(row, 7), math.NaN()); err != nil {
		return nil, err
	}
	if m.flagMasks, err = parseIntList(column(row, 8)); err != nil {
		return nil, err
	}
	if m.flagValues, err = parseIntList(column(row, 9)); err != nil {
		return nil, err
	}
	m.flagMeanings = strings.Join(parseList(column(row, 10)), " ")
	if len(m.flagMeanings) > 0 {
		n := len(strings.Fields(m.flagMeanings))
		if len(m.flagMasks) > 0 && len(m.flagMasks) != n {
			return nil, fmt.Errorf("dddb: member %s has %d flag masks but %d flag meanings", m.name, len(m.flagMasks), n)
		}
		if len(m.flagValues) > 0 && len(m.flagValues) != n {
			return nil, fmt.Errorf("dddb: member %s has %d flag values but %d flag meanings", m.name, len(m.flagValues), n)
		}
	}
	return m, nil
}
