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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

const testSchema = `<?xml version="1.0"?>
<binx xmlns="http://www.edikt.org/binx/2003/06/binx">
  <definitions>
    <defineType typeName="Time_Type">
      <struct>
        <integer-32 varName="Days"/>
        <unsignedInteger-32 varName="Seconds"/>
      </struct>
    </defineType>
    <defineType typeName="Item_Type">
      <struct>
        <short-16 varName="Code"/>
        <float-32 varName="Value"/>
      </struct>
    </defineType>
    <defineType typeName="Record_Type">
      <struct>
        <unsignedInteger-32 varName="ID"/>
        <useType varName="Time" typeName="Time_Type"/>
        <arrayFixed varName="Weights">
          <unsignedShort-16/>
          <dim indexFrom="1" indexTo="2"/>
        </arrayFixed>
        <arrayVariable varName="Items">
          <sizeRef>
            <unsignedByte-8 varName="Item_Count"/>
          </sizeRef>
          <useType typeName="Item_Type"/>
          <dim name="Items"/>
        </arrayVariable>
        <double-64 varName="Tail"/>
      </struct>
    </defineType>
  </definitions>
  <dataset src="test">
    <struct>
      <byte-8 varName="Version"/>
      <arrayVariable varName="Records">
        <sizeRef>
          <unsignedInteger-32/>
        </sizeRef>
        <useType typeName="Record_Type"/>
        <dim name="Records"/>
      </arrayVariable>
    </struct>
  </dataset>
</binx>`

type testItem struct {
	Code  int16
	Value float32
}

type testRecord struct {
	ID      uint32
	Days    int32
	Seconds uint32
	Weights [2]uint16
	Items   []testItem
	Tail    float64
}

// encodeRecords writes data in the layout of testSchema.
func encodeRecords(records []testRecord) []byte {
	var b bytes.Buffer
	w := func(v interface{}) {
		if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	w(int8(3))
	w(uint32(len(records)))
	for _, r := range records {
		w(r.ID)
		w(r.Days)
		w(r.Seconds)
		w(r.Weights)
		w(uint8(len(r.Items)))
		for _, it := range r.Items {
			w(it.Code)
			w(it.Value)
		}
		w(r.Tail)
	}
	return b.Bytes()
}

var testRecords = []testRecord{
	{ID: 1, Days: -2, Seconds: 10, Weights: [2]uint16{1, 65535}, Items: []testItem{{Code: -1, Value: 1.5}}, Tail: 0.25},
	{ID: 2, Days: 3, Seconds: 20, Weights: [2]uint16{2, 3}, Tail: 0.5},
	{ID: 3, Days: 4, Seconds: 30, Weights: [2]uint16{4, 5}, Items: []testItem{{Code: 7, Value: 2}, {Code: 8, Value: 3}, {Code: 9, Value: 4}}, Tail: 0.75},
}

func names(c *CompoundType) []string {
	var n []string
	for _, m := range c.Members() {
		n = append(n, m.Name)
	}
	return n
}

func readTestFormat(t *testing.T, opts Options) *DataFormat {
	f, err := ReadFormat(strings.NewReader(testSchema), "test", opts)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestReadFormat(t *testing.T) {
	f := readTestFormat(t, Options{})
	if f.ByteOrder != binary.LittleEndian {
		t.Error("byte order must be little-endian")
	}
	if got, want := names(f.Type), []string{"Version", "Records_Counter", "Records"}; !reflect.DeepEqual(got, want) {
		t.Errorf("%v != %v", got, want)
	}
	rec := f.Type.Member(2).Type.(*SequenceType).Element.(*CompoundType)
	if got, want := names(rec), []string{"ID", "Time", "Weights", "Item_Count", "Items", "Tail"}; !reflect.DeepEqual(got, want) {
		t.Errorf("%v != %v", got, want)
	}
	if rec.Size() != -1 {
		t.Errorf("record size = %d, want -1", rec.Size())
	}
	if s := rec.Member(2).Type.Size(); s != 4 {
		t.Errorf("Weights size = %d", s)
	}
}

func TestReadFormatOptions(t *testing.T) {
	f := readTestFormat(t, Options{
		Rename:        map[string]string{"Records": "Record_List", "Item_Count": "Items_Counter"},
		InlineStructs: []string{"Time"},
		InlineArrays:  []string{"Weights"},
	})
	if got, want := names(f.Type), []string{"Version", "Records_Counter", "Record_List"}; !reflect.DeepEqual(got, want) {
		t.Errorf("%v != %v", got, want)
	}
	rec := f.Type.Member(2).Type.(*SequenceType).Element.(*CompoundType)
	want := []string{"ID", "Days", "Seconds", "Weights_0", "Weights_1", "Items_Counter", "Items", "Tail"}
	if got := names(rec); !reflect.DeepEqual(got, want) {
		t.Errorf("%v != %v", got, want)
	}
}

func TestReadFormatErrors(t *testing.T) {
	for name, schema := range map[string]string{
		"not xml":       "<binx",
		"no dataset":    "<binx><definitions/></binx>",
		"undefined":     `<binx><dataset><struct><useType varName="a" typeName="Missing"/></struct></dataset></binx>`,
		"float sizeRef": `<binx><dataset><struct><arrayVariable varName="a"><sizeRef><float-32/></sizeRef><byte-8/></arrayVariable></struct></dataset></binx>`,
		"not a struct":  `<binx><dataset><byte-8 varName="a"/></dataset></binx>`,
		"unknown":       `<binx><dataset><struct><string varName="a"/></struct></dataset></binx>`,
	} {
		if _, err := ReadFormat(strings.NewReader(schema), "test", Options{}); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestCompoundData(t *testing.T) {
	f := readTestFormat(t, Options{InlineStructs: []string{"Time"}, InlineArrays: []string{"Weights"}})
	root := Open(f, bytes.NewReader(encodeRecords(testRecords)))
	v, err := root.Int8(root.MemberIndex("Version"))
	if err != nil || v != 3 {
		t.Fatalf("version %d, %v", v, err)
	}
	records, err := root.Sequence(root.MemberIndex("Records"))
	if err != nil {
		t.Fatal(err)
	}
	if records.Len() != len(testRecords) {
		t.Fatalf("%d records", records.Len())
	}
	// Read backwards first so that offsets are resolved out of order.
	for i := len(testRecords) - 1; i >= 0; i-- {
		want := testRecords[i]
		rec, err := records.Compound(i)
		if err != nil {
			t.Fatal(err)
		}
		id, err := rec.Int32(rec.MemberIndex("ID"))
		if err != nil || uint32(id) != want.ID {
			t.Errorf("record %d: ID %d, %v", i, id, err)
		}
		days, _ := rec.Int32(rec.MemberIndex("Days"))
		if days != want.Days {
			t.Errorf("record %d: Days %d", i, days)
		}
		w1, _ := rec.Int16(rec.MemberIndex("Weights_1"))
		if uint16(w1) != want.Weights[1] {
			t.Errorf("record %d: Weights_1 %d", i, w1)
		}
		wv, _ := rec.Value(rec.MemberIndex("Weights_1"))
		if wv != float64(want.Weights[1]) {
			t.Errorf("record %d: Weights_1 value %g", i, wv)
		}
		tail, err := rec.Float64(rec.MemberIndex("Tail"))
		if err != nil || tail != want.Tail {
			t.Errorf("record %d: Tail %g, %v", i, tail, err)
		}
		items, err := rec.Sequence(rec.MemberIndex("Items"))
		if err != nil {
			t.Fatal(err)
		}
		if items.Len() != len(want.Items) {
			t.Fatalf("record %d: %d items", i, items.Len())
		}
		for j, it := range want.Items {
			c, err := items.Compound(j)
			if err != nil {
				t.Fatal(err)
			}
			code, _ := c.Int16(0)
			value, _ := c.Float32(1)
			if code != it.Code || value != it.Value {
				t.Errorf("record %d item %d: %d %g", i, j, code, value)
			}
		}
		size, err := rec.Size()
		if err != nil {
			t.Fatal(err)
		}
		if want := int64(4 + 8 + 4 + 1 + 6*len(want.Items) + 8); size != want {
			t.Errorf("record %d: size %d, want %d", i, size, want)
		}
	}
}

func TestTypeMismatch(t *testing.T) {
	f := readTestFormat(t, Options{})
	root := Open(f, bytes.NewReader(encodeRecords(testRecords)))
	_, err := root.Float32(root.MemberIndex("Version"))
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("got %v, want a TypeMismatchError", err)
	}
	if tm.Member != "Version" {
		t.Errorf("member %s", tm.Member)
	}
	if _, err := root.Int16(root.MemberIndex("Version")); !errors.As(err, &tm) {
		t.Errorf("got %v, want a TypeMismatchError", err)
	}
	if _, err := root.Compound(root.MemberIndex("Records")); !errors.As(err, &tm) {
		t.Errorf("got %v, want a TypeMismatchError", err)
	}
	if _, err := root.Int8(-1); err == nil {
		t.Error("expected an error")
	}
}

func TestTruncated(t *testing.T) {
	f := readTestFormat(t, Options{})
	data := encodeRecords(testRecords)
	root := Open(f, bytes.NewReader(data[:len(data)-4]))
	records, err := root.Sequence(root.MemberIndex("Records"))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := records.Compound(2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Float64(rec.MemberIndex("Tail")); err == nil {
		t.Error("expected an error")
	}
}

func TestSequenceValue(t *testing.T) {
	f := readTestFormat(t, Options{})
	root := Open(f, bytes.NewReader(encodeRecords(testRecords)))
	records, _ := root.Sequence(2)
	rec, _ := records.Compound(0)
	weights, err := rec.Sequence(rec.MemberIndex("Weights"))
	if err != nil {
		t.Fatal(err)
	}
	v, err := weights.Value(1)
	if err != nil || v != 65535 {
		t.Errorf("got %g, %v", v, err)
	}
	if _, err := weights.Value(2); err == nil {
		t.Error("expected an out of range error")
	}
}

func TestCountExceedsData(t *testing.T) {
	f := readTestFormat(t, Options{})
	data := encodeRecords(testRecords)
	binary.LittleEndian.PutUint32(data[1:], 0xffffffff)
	root := Open(f, bytes.NewReader(data))
	if _, err := root.Sequence(root.MemberIndex("Records")); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want a data size error", err)
	}

	// Without a known size the count is taken as is.
	root = Open(f, readerAt{bytes.NewReader(data)})
	records, err := root.Sequence(root.MemberIndex("Records"))
	if err != nil {
		t.Fatal(err)
	}
	if records.Len() != 0xffffffff {
		t.Errorf("length %d", records.Len())
	}
}

// readerAt hides the Size method of the wrapped reader.
type readerAt struct{ r io.ReaderAt }

func (r readerAt) ReadAt(b []byte, off int64) (int, error) { return r.r.ReadAt(b, off) }
