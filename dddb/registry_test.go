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
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/bcdev/smos-box-sub001/binx"
	"github.com/google/go-cmp/cmp"
)

const (
	browseFull = "DBL_SM_XXXX_MIR_BWLF1C_0200"
	scienceL1C = "DBL_SM_XXXX_MIR_SCLF1C_0200"
	oceanL2    = "DBL_SM_XXXX_MIR_OSUDP2_0200"
	soilL2     = "DBL_SM_XXXX_MIR_SMUDP2_0300"
	ecmwfAux   = "DBL_SM_XXXX_AUX_ECMWF__0200"
)

func TestResourcePath(t *testing.T) {
	got := resourcePath(bandsDir, browseFull, csvSuffix)
	if want := "bands/MIR_/BWLF1C/DBL_SM_XXXX_MIR_BWLF1C_0200.csv"; got != want {
		t.Errorf("%s != %s", got, want)
	}
}

func TestBandDescriptorsIdentity(t *testing.T) {
	r := NewRegistry(Resources())
	b1, err := r.BandDescriptors(browseFull)
	if err != nil {
		t.Fatal(err)
	}
	if b1 == nil {
		t.Fatal("no band descriptors")
	}
	b2, err := r.BandDescriptors(browseFull)
	if err != nil {
		t.Fatal(err)
	}
	if b1 != b2 {
		t.Error("band families are not identical")
	}
	lat, ok := b1.Get("Grid_Point_Latitude")
	if !ok {
		t.Fatal("no Grid_Point_Latitude band")
	}
	if lat.Unit() != "deg" || !lat.HasTypicalMin() || lat.TypicalMin() != -90 {
		t.Errorf("unit %q, typical min %g", lat.Unit(), lat.TypicalMin())
	}
}

func TestConcurrentLoad(t *testing.T) {
	r := NewRegistry(Resources())
	const n = 16
	families := make([]*Family[*BandDescriptor], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := r.BandDescriptors(oceanL2)
			if err != nil {
				t.Error(err)
			}
			families[i] = f
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if families[i] != families[0] {
			t.Fatalf("family %d differs from family 0", i)
		}
	}
}

func TestFlagDescriptorsIdentity(t *testing.T) {
	r := NewRegistry(Resources())
	bands, err := r.BandDescriptors(browseFull)
	if err != nil {
		t.Fatal(err)
	}
	fx, _ := bands.Get("Flags_X")
	fy, _ := bands.Get("Flags_Y")
	direct, err := r.FlagDescriptors(browseFull + "_flags")
	if err != nil {
		t.Fatal(err)
	}
	if direct == nil {
		t.Fatal("no flag descriptors")
	}
	if fx.FlagDescriptors() != direct || fy.FlagDescriptors() != direct {
		t.Error("flag families reached through bands are not identical")
	}
	rfi, ok := direct.Get("RFI_2")
	if !ok || rfi.Mask() != 0x8000 {
		t.Errorf("RFI_2 = %+v", rfi)
	}
	if direct.Len() != 16 {
		t.Errorf("flag family has %d flags", direct.Len())
	}
}

func TestAbsent(t *testing.T) {
	r := NewRegistry(Resources())
	for _, id := range []string{
		"DBL_SM_XXXX_MIR_BWSF1C_0200",
		"not a format",
		"DBL_SM_XXXX_MIR_BWLF1C_020",
	} {
		b, err := r.BandDescriptors(id)
		if err != nil || b != nil {
			t.Errorf("%s: got %v, %v", id, b, err)
		}
		f, err := r.DataFormat(id)
		if err != nil || f != nil {
			t.Errorf("%s: got %v, %v", id, f, err)
		}
	}
	// A format identifier is not a flag family identifier.
	f, err := r.FlagDescriptors(browseFull)
	if err != nil || f != nil {
		t.Errorf("got %v, %v", f, err)
	}
}

func TestFindBandDescriptorForMember(t *testing.T) {
	r := NewRegistry(Resources())
	b, err := r.FindBandDescriptorForMember(browseFull, "BT_Value")
	if err != nil {
		t.Fatal(err)
	}
	if b == nil || b.Name() != "BT_Value_X" {
		t.Errorf("got %v", b)
	}
	b, err = r.FindBandDescriptorForMember(browseFull, "No_Such_Member")
	if err != nil || b != nil {
		t.Errorf("got %v, %v", b, err)
	}
}

func TestMalformed(t *testing.T) {
	fsys := fstest.MapFS{
		"bands/MIR_/BWLF1C/" + browseFull + ".csv": {Data: []byte("header\nBT_Value|*|pol\n")},
	}
	r := NewRegistry(fsys)
	_, err := r.BandDescriptors(browseFull)
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("got %v, want a MalformedError", err)
	}
	if me.ID != browseFull {
		t.Errorf("error names %s", me.ID)
	}
	// Failures are cached like values.
	_, err2 := r.BandDescriptors(browseFull)
	if err2 != err {
		t.Errorf("%v != %v", err2, err)
	}
}

func TestSchemaError(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/MIR_/BWLF1C/" + browseFull + ".binXschema.xml": {Data: []byte("<binx><dataset></dataset></binx>")},
	}
	_, err := NewRegistry(fsys).DataFormat(browseFull)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want a SchemaError", err)
	}
	if !strings.Contains(err.Error(), browseFull) || !strings.Contains(err.Error(), "binXschema.xml") {
		t.Errorf("error does not name the resource: %v", err)
	}
}

func memberNames(t *binx.CompoundType) []string {
	var names []string
	for _, m := range t.Members() {
		names = append(names, m.Name)
	}
	return names
}

func gridPointType(t *testing.T, f *binx.DataFormat) *binx.CompoundType {
	i := f.Type.MemberIndex("Grid_Point_List")
	if i < 0 {
		t.Fatalf("%s: no Grid_Point_List in %v", f.Name, memberNames(f.Type))
	}
	return f.Type.Member(i).Type.(*binx.SequenceType).Element.(*binx.CompoundType)
}

func TestDataFormat(t *testing.T) {
	r := NewRegistry(Resources())
	t.Run("browse", func(t *testing.T) {
		f, err := r.DataFormat(browseFull)
		if err != nil {
			t.Fatal(err)
		}
		if f2, _ := r.DataFormat(browseFull); f2 != f {
			t.Error("formats are not identical")
		}
		if diff := cmp.Diff([]string{"Grid_Point_Counter", "Grid_Point_List"}, memberNames(f.Type)); diff != "" {
			t.Errorf("top level (-want +got):\n%s", diff)
		}
		want := []string{"Grid_Point_ID", "Grid_Point_Latitude", "Grid_Point_Longitude", "Grid_Point_Altitude",
			"Grid_Point_Mask", "BT_Data_Counter", "BT_Data_List"}
		if diff := cmp.Diff(want, memberNames(gridPointType(t, f))); diff != "" {
			t.Errorf("grid point (-want +got):\n%s", diff)
		}
	})
	t.Run("science", func(t *testing.T) {
		f, err := r.DataFormat(scienceL1C)
		if err != nil {
			t.Fatal(err)
		}
		snap := f.Type.Member(f.Type.MemberIndex("Snapshot_List")).Type.(*binx.SequenceType).Element.(*binx.CompoundType)
		want := []string{"Days", "Seconds", "Microseconds", "Snapshot_ID", "Snapshot_OBET",
			"Position_0", "Position_1", "Position_2", "Vector_Source", "TEC", "Accuracy"}
		if diff := cmp.Diff(want, memberNames(snap)); diff != "" {
			t.Errorf("snapshot (-want +got):\n%s", diff)
		}
		if snap.Size() != 57 {
			t.Errorf("snapshot size = %d", snap.Size())
		}
	})
	t.Run("ocean", func(t *testing.T) {
		f, err := r.DataFormat(oceanL2)
		if err != nil {
			t.Fatal(err)
		}
		gp := gridPointType(t, f)
		for _, name := range []string{"SSS1", "SST", "Control_Flags_1", "Dg_quality_0", "Dg_quality_2", "Science_Flags"} {
			if gp.MemberIndex(name) < 0 {
				t.Errorf("no member %s", name)
			}
		}
		if gp.MemberIndex("Geophysical_Parameters_Data") >= 0 {
			t.Error("struct was not inlined")
		}
	})
	t.Run("soil", func(t *testing.T) {
		f, err := r.DataFormat(soilL2)
		if err != nil {
			t.Fatal(err)
		}
		gp := gridPointType(t, f)
		if gp.Size() < 0 {
			t.Error("soil moisture grid points must have a fixed size")
		}
	})
	t.Run("ecmwf", func(t *testing.T) {
		f, err := r.DataFormat(ecmwfAux)
		if err != nil {
			t.Fatal(err)
		}
		if f == nil {
			t.Fatal("no format")
		}
		want := []string{"Grid_Point_ID", "Grid_Point_Latitude", "Grid_Point_Longitude",
			"Skin_Temperature", "Soil_Temperature_Level1", "Soil_Moisture_Level1",
			"Total_Precipitation", "Snow_Depth", "Surface_Pressure", "Land_Sea_Mask"}
		if diff := cmp.Diff(want, memberNames(gridPointType(t, f))); diff != "" {
			t.Errorf("grid point (-want +got):\n%s", diff)
		}
		if gridPointType(t, f).Size() != 38 {
			t.Errorf("grid point size = %d", gridPointType(t, f).Size())
		}
	})
}

func TestDataFormatFromHeader(t *testing.T) {
	r := NewRegistry(Resources())
	header := `<?xml version="1.0"?>
<Earth_Explorer_Header xmlns="http://www.esa.int/safe/sentinel/smos">
  <Variable_Header>
    <Specific_Product_Header>
      <Main_Info>
        <Datablock_Schema>DBL_SM_XXXX_MIR_OSUDP2_0200.binXschema.xml</Datablock_Schema>
      </Main_Info>
    </Specific_Product_Header>
  </Variable_Header>
</Earth_Explorer_Header>`
	f, err := r.DataFormatFromHeader(strings.NewReader(header))
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != oceanL2 {
		t.Errorf("format %s", f.Name)
	}
	for name, doc := range map[string]string{
		"no namespace": `<Earth_Explorer_Header><Datablock_Schema>` + oceanL2 + `</Datablock_Schema></Earth_Explorer_Header>`,
		"other namespace": `<h:Earth_Explorer_Header xmlns:h="urn:a" xmlns:o="urn:b"><o:Datablock_Schema>` + oceanL2 +
			`</o:Datablock_Schema></h:Earth_Explorer_Header>`,
		"no schema": `<Earth_Explorer_Header xmlns="urn:a"></Earth_Explorer_Header>`,
	} {
		if _, err := r.DataFormatFromHeader(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
