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

package ee2netcdf

import (
	"fmt"
	"strings"

	"github.com/bcdev/smos-box-sub001/binx"
	"github.com/bcdev/smos-box-sub001/dddb"
)

// DataType is the NetCDF type of an output variable.
type DataType int

// The NetCDF classic numeric types.
const (
	Byte DataType = iota + 1
	Short
	Int
	Float
	Double
)

func (t DataType) String() string {
	switch t {
	case Byte:
		return "byte"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// dataType returns the output type of a binary member type. 64-bit
// integers have no classic NetCDF type and are stored as doubles.
func dataType(t binx.SimpleType) DataType {
	switch {
	case t == binx.Float32:
		return Float
	case t == binx.Float64, t.Size() == 8:
		return Double
	case t.Size() == 1:
		return Byte
	case t.Size() == 2:
		return Short
	}
	return Int
}

// Source identifies the record a variable is read from.
type Source int

// The record sources.
const (
	GridPointSource Source = iota
	BtDataSource
	SnapshotSource
)

// VariableDescriptor describes one output variable. It is built before
// any data is written and not changed afterwards.
type VariableDescriptor struct {
	Name string
	// Member is the name of the binary member the variable is read from
	// and Index its position in the source record type.
	Member string
	Index  int
	Source Source

	Type       DataType
	Dimensions []string

	// String attributes are written when they are not empty.
	Unit         string
	Description  string
	StandardName string
	OriginalName string

	FillValue    float64
	HasFillValue bool
	ValidMin     float64
	HasValidMin  bool
	ValidMax     float64
	HasValidMax  bool
	ScaleFactor  float64
	HasScale     bool
	AddOffset    float64
	HasOffset    bool

	FlagMasks    []int64
	FlagValues   []int64
	FlagMeanings string

	Unsigned bool

	// ValidPixelExpression is the band condition a source record must
	// meet to be stored. Records failing it keep the fill value, so it is
	// only set for variables with one.
	ValidPixelExpression string
}

// describer derives variable descriptors from binary members and the
// descriptor tables of one format.
type describer struct {
	reg     *dddb.Registry
	format  string
	members *dddb.Family[*dddb.MemberDescriptor]
	dims    map[string]int
}

func newDescriber(reg *dddb.Registry, format string, dims map[string]int) (*describer, error) {
	members, err := reg.MemberDescriptors(format)
	if err != nil {
		return nil, err
	}
	return &describer{reg: reg, format: format, members: members, dims: dims}, nil
}

func (d *describer) member(name string) *dddb.MemberDescriptor {
	if d.members == nil {
		return nil
	}
	m, _ := d.members.Get(name)
	return m
}

// describe returns the descriptor of member i of t, or nil if the member
// is not exported.
func (d *describer) describe(t *binx.CompoundType, i int, src Source, dims []string) (*VariableDescriptor, error) {
	m := t.Member(i)
	st, ok := m.Type.(binx.SimpleType)
	if !ok {
		return nil, nil
	}
	md := d.member(m.Name)
	if md != nil && !md.GridPointData() {
		return nil, nil
	}
	v := &VariableDescriptor{
		Name:       m.Name,
		Member:     m.Name,
		Index:      i,
		Source:     src,
		Type:       dataType(st),
		Dimensions: dims,
		Unsigned:   st.Unsigned() && st.Size() < 8,
	}
	band, err := d.reg.FindBandDescriptorForMember(d.format, m.Name)
	if err != nil {
		return nil, err
	}
	if band != nil {
		v.Unit = band.Unit()
		v.Description = band.Description()
		if band.HasFillValue() {
			v.FillValue, v.HasFillValue = band.FillValue(), true
			v.ValidPixelExpression = band.ValidPixelExpression()
		}
		if band.ScalingFactor() != 1 {
			v.ScaleFactor, v.HasScale = band.ScalingFactor(), true
		}
		if band.ScalingOffset() != 0 {
			v.AddOffset, v.HasOffset = band.ScalingOffset(), true
		}
		if flags := band.FlagDescriptors(); flags != nil && flags.Len() > 0 {
			var names []string
			for _, f := range flags.List() {
				v.FlagMasks = append(v.FlagMasks, f.Mask())
				names = append(names, f.Name())
			}
			v.FlagMeanings = strings.Join(names, " ")
		}
	}
	if md == nil {
		return v, nil
	}
	if md.VariableName() != m.Name {
		v.Name = md.VariableName()
		v.OriginalName = m.Name
	}
	if md.StandardName() != "" {
		v.StandardName = md.StandardName()
	}
	if md.HasValidMin() {
		v.ValidMin, v.HasValidMin = md.ValidMin(), true
	}
	if md.HasValidMax() {
		v.ValidMax, v.HasValidMax = md.ValidMax(), true
	}
	if u, ok := md.Unsigned(); ok && v.Type != Float && v.Type != Double {
		v.Unsigned = u
	}
	if len(md.FlagMasks()) > 0 || len(md.FlagValues()) > 0 {
		v.FlagMasks = md.FlagMasks()
		v.FlagValues = md.FlagValues()
		v.FlagMeanings = md.FlagMeanings()
	}
	if ds := md.Dimensions(); len(ds) > 0 {
		if len(ds) != len(dims) {
			return nil, fmt.Errorf("ee2netcdf: %s: member %s has %d dimensions, want %d",
				d.format, m.Name, len(ds), len(dims))
		}
		if ds[0] != dims[0] {
			return nil, fmt.Errorf("ee2netcdf: %s: member %s is indexed by %s, not %s", d.format, m.Name, dims[0], ds[0])
		}
		for _, name := range ds {
			if _, ok := d.dims[name]; !ok {
				return nil, fmt.Errorf("ee2netcdf: %s: member %s: unknown dimension %s", d.format, m.Name, name)
			}
		}
		v.Dimensions = ds
	}
	return v, nil
}
