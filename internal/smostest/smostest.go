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

// Package smostest writes synthetic SMOS products for tests.
package smostest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"text/template"

	"github.com/bcdev/smos-box-sub001/binx"
	"github.com/bcdev/smos-box-sub001/dddb"
	"github.com/ctessum/geom"
)

// Product describes a synthetic product.
type Product struct {
	// Format is the data format name, e.g. DBL_SM_XXXX_MIR_BWLF1C_0200.
	Format string
	// Name is the file name without extension. It defaults to an
	// operational style name for the format.
	Name string
	// Locations holds longitude (X) and latitude (Y) of each grid point.
	Locations []geom.Point
	// BtCounts holds the number of BT records of each grid point.
	BtCounts []int
	// Snapshots is the number of snapshot records.
	Snapshots int
	// Value returns the value of a simple member. index is the BT or
	// snapshot record index, or -1 for grid point members. If Value is
	// nil or returns false, DefaultValue is used.
	Value func(member string, gridPoint, index int) (float64, bool)
}

// DefaultValue is the value written for a member when the product does
// not define one.
func DefaultValue(member string, gridPoint, index int) float64 {
	if member == "Grid_Point_ID" {
		return float64(gridPoint + 1)
	}
	return float64((gridPoint+1)*10 + index + 1)
}

// FileName returns the product name used when Name is empty.
func FileName(format string) string {
	return fmt.Sprintf("SM_TEST_%s_20100405T143038_20100405T152439_330_001_1", format[12:22])
}

// Write writes the header and data block of p to dir and returns the
// header path. The layout is taken from reg.
func Write(reg *dddb.Registry, dir string, p Product) (string, error) {
	format, err := reg.DataFormat(p.Format)
	if err != nil {
		return "", err
	}
	if format == nil {
		return "", fmt.Errorf("smostest: unknown format %s", p.Format)
	}
	name := p.Name
	if name == "" {
		name = FileName(p.Format)
	}
	hdr := filepath.Join(dir, name+".HDR")
	if err := writeHeader(hdr, name, p.Format); err != nil {
		return "", err
	}
	f, err := os.Create(filepath.Join(dir, name+".DBL"))
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	e := &encoder{w: w, p: p, order: format.ByteOrder}
	if err := e.compound(format.Type, -1, -1); err != nil {
		f.Close()
		return "", err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return "", err
	}
	return hdr, f.Close()
}

type encoder struct {
	w     *bufio.Writer
	p     Product
	order binary.ByteOrder
	buf   [8]byte
}

// count returns the number of elements of the counted sequence name.
func (e *encoder) count(name string, gridPoint int) int {
	switch name {
	case "Grid_Point_List":
		return len(e.p.Locations)
	case "Snapshot_List":
		return e.p.Snapshots
	case "BT_Data_List":
		if gridPoint < len(e.p.BtCounts) {
			return e.p.BtCounts[gridPoint]
		}
	}
	return 0
}

func (e *encoder) value(member string, gridPoint, index int) float64 {
	if e.p.Value != nil {
		if v, ok := e.p.Value(member, gridPoint, index); ok {
			return v
		}
	}
	if index < 0 && gridPoint >= 0 && gridPoint < len(e.p.Locations) {
		switch member {
		case "Grid_Point_Longitude":
			return e.p.Locations[gridPoint].X
		case "Grid_Point_Latitude":
			return e.p.Locations[gridPoint].Y
		}
	}
	return DefaultValue(member, gridPoint, index)
}

func (e *encoder) compound(t *binx.CompoundType, gridPoint, index int) error {
	counters := make(map[string]int)
	for _, m := range t.Members() {
		if m.Count != "" {
			counters[m.Count] = e.count(m.Name, gridPoint)
		}
	}
	for _, m := range t.Members() {
		switch mt := m.Type.(type) {
		case binx.SimpleType:
			n, counter := counters[m.Name]
			v := float64(n)
			if !counter {
				v = e.value(m.Name, gridPoint, index)
			}
			e.simple(mt, v)
		case *binx.CompoundType:
			if err := e.compound(mt, gridPoint, index); err != nil {
				return err
			}
		case *binx.SequenceType:
			n := mt.Length
			if n < 0 {
				n = counters[m.Count]
			}
			for k := 0; k < n; k++ {
				gp, idx := gridPoint, k
				if m.Name == "Grid_Point_List" {
					gp, idx = k, -1
				}
				if err := e.element(mt.Element, m.Name, gp, idx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *encoder) element(t binx.Type, name string, gridPoint, index int) error {
	switch et := t.(type) {
	case *binx.CompoundType:
		return e.compound(et, gridPoint, index)
	case binx.SimpleType:
		e.simple(et, e.value(name, gridPoint, index))
		return nil
	}
	return fmt.Errorf("smostest: cannot encode %s elements", t.TypeName())
}

func (e *encoder) simple(t binx.SimpleType, v float64) {
	var raw uint64
	switch t {
	case binx.Float32:
		raw = uint64(math.Float32bits(float32(v)))
	case binx.Float64:
		raw = math.Float64bits(v)
	default:
		raw = uint64(int64(v))
	}
	b := e.buf[:t.Size()]
	switch len(b) {
	case 1:
		b[0] = byte(raw)
	case 2:
		e.order.PutUint16(b, uint16(raw))
	case 4:
		e.order.PutUint32(b, uint32(raw))
	case 8:
		e.order.PutUint64(b, raw)
	}
	e.w.Write(b)
}

var headerTemplate = template.Must(template.New("header").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<Earth_Explorer_Header xmlns="http://www.esa.int/safe/sentinel/smos" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <Fixed_Header>
    <File_Name>{{.Name}}</File_Name>
    <File_Description>Synthetic test product</File_Description>
    <Notes></Notes>
    <Mission>SMOS</Mission>
    <File_Class>TEST</File_Class>
    <File_Type>{{.Type}}</File_Type>
    <Validity_Period>
      <Validity_Start>UTC=2010-04-05T14:30:38</Validity_Start>
      <Validity_Stop>UTC=2010-04-05T15:24:39</Validity_Stop>
    </Validity_Period>
    <File_Version>0001</File_Version>
    <Source>
      <System>DPGS</System>
      <Creator>L1OP</Creator>
      <Creator_Version>330</Creator_Version>
      <Creation_Date>UTC=2010-04-06T02:00:00</Creation_Date>
    </Source>
  </Fixed_Header>
  <Variable_Header>
    <Main_Product_Header>
      <Ref_Doc>SO-TN-IDR-GS-0005</Ref_Doc>
    </Main_Product_Header>
    <Specific_Product_Header>
      <Main_Info>
        <Datablock_Schema>{{.Format}}.binXschema.xml</Datablock_Schema>
      </Main_Info>
    </Specific_Product_Header>
  </Variable_Header>
</Earth_Explorer_Header>
`))

func writeHeader(path, name, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	data := struct{ Name, Type, Format string }{name, format[12:22], format}
	if err := headerTemplate.Execute(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
