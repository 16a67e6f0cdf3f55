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
	"io"

	"github.com/ctessum/cdf"

	"github.com/bcdev/smos-box-sub001/binx"
)

// element is the set of NetCDF classic element types.
type element interface {
	uint8 | int16 | int32 | float32 | float64
}

// variableWriter stores the values of one output variable.
type variableWriter interface {
	// write reads the variable's member from record, or from each record
	// of bt for BT variables, and stores it at output index out.
	write(record *binx.CompoundData, bt *binx.SequenceData, out int) error
	// close writes the buffered values to f and releases the buffer.
	close(f *cdf.File) error
	// release drops the buffer without writing it.
	release()
	descriptor() *VariableDescriptor
}

// writer buffers the whole extent of one variable and writes it in one
// piece on close. Each output index holds width values; unused slots and
// records failing the valid pixel check keep the fill value.
type writer[T element] struct {
	desc  *VariableDescriptor
	buf   []T
	width int
	read  func(c *binx.CompoundData, i int) (T, error)
	valid *validity
}

func newWriter[T element](desc *VariableDescriptor, n, width int, valid *validity, read func(*binx.CompoundData, int) (T, error)) *writer[T] {
	w := &writer[T]{
		desc:  desc,
		buf:   make([]T, n*width),
		width: width,
		read:  read,
		valid: valid,
	}
	if desc.HasFillValue {
		fill := convert[T](desc.FillValue)
		for i := range w.buf {
			w.buf[i] = fill
		}
	}
	return w
}

func (w *writer[T]) descriptor() *VariableDescriptor { return w.desc }

func (w *writer[T]) write(record *binx.CompoundData, bt *binx.SequenceData, out int) error {
	if w.desc.Source != BtDataSource {
		return w.store(record, out)
	}
	if bt == nil {
		return nil
	}
	n := bt.Len()
	if n > w.width {
		n = w.width
	}
	base := out * w.width
	for j := 0; j < n; j++ {
		rec, err := bt.Compound(j)
		if err != nil {
			return fmt.Errorf("ee2netcdf: %s: %w", w.desc.Name, err)
		}
		if err := w.store(rec, base+j); err != nil {
			return err
		}
	}
	return nil
}

// store reads the member from rec into slot k unless rec is not valid.
func (w *writer[T]) store(rec *binx.CompoundData, k int) error {
	if w.valid != nil {
		ok, err := w.valid.valid(rec)
		if err != nil {
			return fmt.Errorf("ee2netcdf: %s: %w", w.desc.Name, err)
		}
		if !ok {
			return nil
		}
	}
	v, err := w.read(rec, w.desc.Index)
	if err != nil {
		return fmt.Errorf("ee2netcdf: %s: %w", w.desc.Name, err)
	}
	w.buf[k] = v
	return nil
}

func (w *writer[T]) release() { w.buf = nil }

func (w *writer[T]) close(f *cdf.File) error {
	if w.buf == nil {
		return nil
	}
	buf := w.buf
	w.buf = nil
	if len(buf) == 0 {
		return nil
	}
	wr := f.Writer(w.desc.Name, nil, nil)
	if wr == nil {
		return fmt.Errorf("ee2netcdf: no output variable %s", w.desc.Name)
	}
	// The cdf writer reports io.EOF once it reaches the end of the
	// variable, which a whole-variable write always does.
	n, err := wr.Write(buf)
	if err == io.EOF && n == len(buf) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("ee2netcdf: writing %s: %w", w.desc.Name, err)
	}
	if n != len(buf) {
		return fmt.Errorf("ee2netcdf: writing %s: wrote %d of %d values", w.desc.Name, n, len(buf))
	}
	return nil
}

// convert converts v to an element type. Integer elements take the
// integer part of v.
func convert[T element](v float64) T {
	var z T
	switch any(z).(type) {
	case float32, float64:
		return T(v)
	}
	return T(int64(v))
}

// newVariableWriter returns the writer for desc holding n output indices
// of width values each. Integer members are stored with their bits
// unchanged; unsignedness is recorded by the _Unsigned attribute only.
// Records for which valid does not hold are left at the fill value; valid
// may be nil.
func newVariableWriter(desc *VariableDescriptor, n, width int, valid *validity) variableWriter {
	switch desc.Type {
	case Byte:
		return newWriter(desc, n, width, valid, func(c *binx.CompoundData, i int) (uint8, error) {
			v, err := c.Int8(i)
			return uint8(v), err
		})
	case Short:
		return newWriter(desc, n, width, valid, (*binx.CompoundData).Int16)
	case Int:
		return newWriter(desc, n, width, valid, (*binx.CompoundData).Int32)
	case Float:
		return newWriter(desc, n, width, valid, (*binx.CompoundData).Float32)
	case Double:
		return newWriter(desc, n, width, valid, (*binx.CompoundData).Value)
	}
	panic(fmt.Sprintf("ee2netcdf: invalid data type %v", desc.Type))
}

// values returns vs as a cdf attribute value of type t.
func values(t DataType, vs ...float64) interface{} {
	switch t {
	case Byte:
		return typed[uint8](vs)
	case Short:
		return typed[int16](vs)
	case Int:
		return typed[int32](vs)
	case Float:
		return typed[float32](vs)
	}
	return typed[float64](vs)
}

func typed[T element](vs []float64) []T {
	out := make([]T, len(vs))
	for i, v := range vs {
		out[i] = convert[T](v)
	}
	return out
}

// zero returns the cdf prototype value declaring a variable of type t.
func zero(t DataType) interface{} {
	return values(t, 0)
}
