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
	"image/color"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		if v := parseString(" * ", "def"); v != "def" {
			t.Errorf("%q != %q", v, "def")
		}
		if v := parseString(" text ", "def"); v != "text" {
			t.Errorf("%q != %q", v, "text")
		}
	})
	t.Run("int", func(t *testing.T) {
		v, err := parseInt("*", -1)
		if err != nil || v != -1 {
			t.Errorf("got %d, %v", v, err)
		}
		if _, err := parseInt("x1", 0); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("double", func(t *testing.T) {
		v, err := parseDouble("*", math.Inf(-1))
		if err != nil || !math.IsInf(v, -1) {
			t.Errorf("got %g, %v", v, err)
		}
		v, err = parseDouble("-0.5", 0)
		if err != nil || v != -0.5 {
			t.Errorf("got %g, %v", v, err)
		}
		if _, err := parseDouble("abc", 0); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("hex", func(t *testing.T) {
		for token, want := range map[string]int64{"*": 7, "0x00008000": 0x8000, "ff": 0xff} {
			v, err := parseHex(token, 7)
			if err != nil || v != want {
				t.Errorf("%s: got %d, %v", token, v, err)
			}
		}
		if _, err := parseHex("0xZZ", 0); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("boolean", func(t *testing.T) {
		for token, want := range map[string]bool{"*": true, "TRUE": true, "False": false} {
			v, err := parseBoolean(token, true)
			if err != nil || v != want {
				t.Errorf("%s: got %v, %v", token, v, err)
			}
		}
		if _, err := parseBoolean("yes", false); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("color", func(t *testing.T) {
		c, err := parseColor("0x80ff0000", nil)
		if err != nil {
			t.Fatal(err)
		}
		if want := (color.RGBA{R: 0xff, A: 0x80}); *c != want {
			t.Errorf("%v != %v", *c, want)
		}
		c, err = parseColor("0x0000ff", nil)
		if err != nil {
			t.Fatal(err)
		}
		if want := (color.RGBA{B: 0xff, A: 0xff}); *c != want {
			t.Errorf("%v != %v", *c, want)
		}
		if c, err = parseColor("*", nil); c != nil || err != nil {
			t.Errorf("got %v, %v", c, err)
		}
	})
	t.Run("int list", func(t *testing.T) {
		v, err := parseIntList("0x01 2 0x10")
		if err != nil {
			t.Fatal(err)
		}
		if want := []int64{1, 2, 16}; !reflect.DeepEqual(v, want) {
			t.Errorf("%v != %v", v, want)
		}
		if v, _ := parseIntList("*"); v != nil {
			t.Errorf("%v != nil", v)
		}
	})
}

func TestReadTable(t *testing.T) {
	const table = `# comment
a|b|c

 1 | 2|3
# another comment
4|5
6|Soil moisture, "retrieved"|7
`
	rows, err := readTable(strings.NewReader(table))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"1", "2", "3"}, {"4", "5"}, {"6", `Soil moisture, "retrieved"`, "7"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("%v != %v", rows, want)
	}
	if c := column(rows[1], 2); c != Wildcard {
		t.Errorf("missing column = %q", c)
	}
}

func noFlags(id string) (*Family[*FlagDescriptor], error) { return nil, nil }

func TestBandDescriptorDefaults(t *testing.T) {
	row := strings.Split("BT_Value|*|*|*|*|*|*|*|*|*|*|*|*|*|*", "|")
	b, err := parseBandDescriptor(row, noFlags)
	if err != nil {
		t.Fatal(err)
	}
	if b.MemberName() != "BT_Value" {
		t.Errorf("member name = %q", b.MemberName())
	}
	if b.Polarization() != -1 || b.SampleModel() != 0 {
		t.Errorf("polarization %d, sample model %d", b.Polarization(), b.SampleModel())
	}
	if b.ScalingOffset() != 0 || b.ScalingFactor() != 1 {
		t.Errorf("scaling %g, %g", b.ScalingOffset(), b.ScalingFactor())
	}
	if b.HasTypicalMin() || b.HasTypicalMax() || b.HasFillValue() {
		t.Error("default band must have no typical range and no fill value")
	}
	if b.Cyclic() || b.Unit() != "" || b.Description() != "" || b.FlagCodingName() != "" {
		t.Error("unexpected non-default values")
	}
	if b.FlagDescriptors() != nil {
		t.Error("unexpected flag descriptors")
	}
}

func TestBandDescriptorHasProperties(t *testing.T) {
	for _, row := range []string{
		"a|*|0|*|*|*|-90|90|*|-999|*|*|*|*|*",
		"b|*|0|*|*|*|*|90|*|*|*|*|*|*|*",
		"c|*|0|*|*|*|-90|*|*|0|*|*|*|*|*",
		"d|*|0|*|*|*|-Inf|+Inf|*|NaN|*|*|*|*|*",
	} {
		b, err := parseBandDescriptor(strings.Split(row, "|"), noFlags)
		if err != nil {
			t.Fatal(err)
		}
		if b.HasTypicalMin() != !math.IsInf(b.TypicalMin(), 0) {
			t.Errorf("%s: HasTypicalMin inconsistent", b.Name())
		}
		if b.HasTypicalMax() != !math.IsInf(b.TypicalMax(), 0) {
			t.Errorf("%s: HasTypicalMax inconsistent", b.Name())
		}
		if b.HasFillValue() != !math.IsNaN(b.FillValue()) {
			t.Errorf("%s: HasFillValue inconsistent", b.Name())
		}
	}
}

func TestBandDescriptorExpression(t *testing.T) {
	row := strings.Split("SSS1|*|*|*|0|0.5|*|*|true|*|${name} != -999|psu|salinity|*|*", "|")
	b, err := parseBandDescriptor(row, noFlags)
	if err != nil {
		t.Fatal(err)
	}
	if e := b.ValidPixelExpression(); e != "SSS1 != -999" {
		t.Errorf("expression = %q", e)
	}
	if !b.Cyclic() || b.Unit() != "psu" {
		t.Errorf("cyclic %v, unit %q", b.Cyclic(), b.Unit())
	}
	if v := b.Scaled(10); v != 5 {
		t.Errorf("scaled = %g", v)
	}
}

func TestBandDescriptorMalformed(t *testing.T) {
	row := strings.Split("x|*|one|*|*|*|*|*|*|*|*|*|*|*|*", "|")
	if _, err := parseBandDescriptor(row, noFlags); err == nil {
		t.Error("expected an error")
	}
}

func TestFlagDescriptorDefaults(t *testing.T) {
	f, err := parseFlagDescriptor(strings.Split("*|RFI|*|*|*|*", "|"))
	if err != nil {
		t.Fatal(err)
	}
	if f.Visible() || f.Mask() != 0 || f.Color() != nil || f.Transparency() != 0.5 || f.Description() != "" {
		t.Errorf("unexpected defaults: %+v", f)
	}
	f, err = parseFlagDescriptor(strings.Split("true|RFI_2|0x8000|0xffaf0000|0.3|point source", "|"))
	if err != nil {
		t.Fatal(err)
	}
	if !f.IsSet(0x8001) || f.IsSet(0x4000) {
		t.Error("IsSet mismatch")
	}
}

func TestMemberDescriptor(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		m, err := parseMemberDescriptor([]string{"Flags"})
		if err != nil {
			t.Fatal(err)
		}
		if m.VariableName() != "Flags" || !m.GridPointData() || m.HasValidMin() || m.HasValidMax() {
			t.Errorf("unexpected defaults: %+v", m)
		}
		if _, ok := m.Unsigned(); ok {
			t.Error("unsigned marker must be unset")
		}
	})
	t.Run("flags", func(t *testing.T) {
		row := strings.Split("Mask|mask|n_grid_points|true|false|*|0|15|0x1 0x2|*|land sea", "|")
		m, err := parseMemberDescriptor(row)
		if err != nil {
			t.Fatal(err)
		}
		if u, ok := m.Unsigned(); u || !ok {
			t.Errorf("unsigned = %v, %v", u, ok)
		}
		if !reflect.DeepEqual(m.FlagMasks(), []int64{1, 2}) || m.FlagMeanings() != "land sea" {
			t.Errorf("flags %v %q", m.FlagMasks(), m.FlagMeanings())
		}
		if !reflect.DeepEqual(m.Dimensions(), []string{"n_grid_points"}) {
			t.Errorf("dimensions %v", m.Dimensions())
		}
	})
	t.Run("mismatch", func(t *testing.T) {
		row := strings.Split("Mask|*|*|*|*|*|*|*|0x1 0x2|*|land", "|")
		if _, err := parseMemberDescriptor(row); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestFamily(t *testing.T) {
	a1, _ := parseFlagDescriptor([]string{"*", "A"})
	b, _ := parseFlagDescriptor([]string{"*", "B"})
	a2, _ := parseFlagDescriptor([]string{"*", "A"})
	f := NewFamily([]*FlagDescriptor{a1, b, a2})
	if f.Len() != 3 {
		t.Errorf("len = %d", f.Len())
	}
	if v, ok := f.Get("A"); !ok || v != a1 {
		t.Error("Get must return the first item of a name")
	}
	if _, ok := f.Get("C"); ok {
		t.Error("unexpected item C")
	}
}
