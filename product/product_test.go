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
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bcdev/smos-box-sub001/dddb"
	"github.com/bcdev/smos-box-sub001/internal/smostest"
	"github.com/ctessum/geom"
)

const (
	browseFull = "DBL_SM_XXXX_MIR_BWLF1C_0200"
	scienceL1C = "DBL_SM_XXXX_MIR_SCLF1C_0200"
)

var testLocations = []geom.Point{{X: 10.5, Y: 45.25}, {X: -179.5, Y: -60}, {X: 180, Y: 78.569}}

func writeProduct(t *testing.T, reg *dddb.Registry, p smostest.Product) string {
	path, err := smostest.Write(reg, t.TempDir(), p)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenBrowse(t *testing.T) {
	reg := dddb.NewRegistry(dddb.Resources())
	path := writeProduct(t, reg, smostest.Product{
		Format:    browseFull,
		Locations: testLocations,
		BtCounts:  []int{4, 2, 0},
	})
	p, err := Open(reg, path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if p.GridPointCount() != 3 {
		t.Fatalf("%d grid points", p.GridPointCount())
	}
	if p.Format().Name != browseFull {
		t.Errorf("format %s", p.Format().Name)
	}
	if !p.HasBtData() || p.BtDataType().MemberIndex("BT_Value") < 0 {
		t.Error("missing BT data")
	}
	snapshots, err := p.Snapshots()
	if err != nil || snapshots != nil {
		t.Errorf("browse snapshots: %v, %v", snapshots, err)
	}
	for i, want := range []int{4, 2, 0} {
		bt, err := p.BtDataList(i)
		if err != nil {
			t.Fatal(err)
		}
		if bt.Len() != want {
			t.Errorf("grid point %d: %d BT records, want %d", i, bt.Len(), want)
		}
		for j := 0; j < bt.Len(); j++ {
			rec, err := bt.Compound(j)
			if err != nil {
				t.Fatal(err)
			}
			v, err := rec.Float32(rec.MemberIndex("BT_Value"))
			if err != nil {
				t.Fatal(err)
			}
			if want := float32(smostest.DefaultValue("BT_Value", i, j)); v != want {
				t.Errorf("grid point %d BT %d: %g != %g", i, j, v, want)
			}
		}
	}
	gp, err := p.GridPoint(2)
	if err != nil {
		t.Fatal(err)
	}
	id, err := gp.Int32(gp.MemberIndex("Grid_Point_ID"))
	if err != nil || id != 3 {
		t.Errorf("Grid_Point_ID %d, %v", id, err)
	}
	locations, err := p.Locations()
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range testLocations {
		got := locations[i]
		if float32(got.X) != float32(want.X) || float32(got.Y) != float32(want.Y) {
			t.Errorf("location %d: %v != %v", i, got, want)
		}
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestOpenScience(t *testing.T) {
	reg := dddb.NewRegistry(dddb.Resources())
	path := writeProduct(t, reg, smostest.Product{
		Format:    scienceL1C,
		Locations: testLocations,
		BtCounts:  []int{1, 7, 3},
		Snapshots: 5,
	})
	p, err := Open(reg, path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	snapshots, err := p.Snapshots()
	if err != nil {
		t.Fatal(err)
	}
	if snapshots.Len() != 5 {
		t.Fatalf("%d snapshots", snapshots.Len())
	}
	s, err := snapshots.Compound(4)
	if err != nil {
		t.Fatal(err)
	}
	pos, err := s.Float64(s.MemberIndex("Position_2"))
	if err != nil {
		t.Fatal(err)
	}
	if want := smostest.DefaultValue("Position_2", -1, 4); pos != want {
		t.Errorf("Position_2 %g != %g", pos, want)
	}
	// Random access after the variable sized records.
	bt, err := p.BtDataList(2)
	if err != nil {
		t.Fatal(err)
	}
	if bt.Len() != 3 {
		t.Errorf("%d BT records", bt.Len())
	}
	gp, _ := p.GridPoint(2)
	lat, err := gp.Float32(gp.MemberIndex(GridPointLatitude))
	if err != nil || lat != float32(78.569) {
		t.Errorf("latitude %g, %v", lat, err)
	}
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"P.HDR", "P.DBL", "q.hdr"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	for _, test := range []struct {
		path, header, data string
	}{
		{"P.HDR", "P.HDR", "P.DBL"},
		{"P.DBL", "P.HDR", "P.DBL"},
		{"q.hdr", "q.hdr", "q.dbl"},
	} {
		h, d, err := Paths(filepath.Join(dir, test.path))
		if err != nil {
			t.Fatal(err)
		}
		if h != filepath.Join(dir, test.header) || d != filepath.Join(dir, test.data) {
			t.Errorf("%s: %s, %s", test.path, h, d)
		}
	}
	if _, _, err := Paths(filepath.Join(dir, "missing.HDR")); err == nil {
		t.Error("expected an error")
	}
	if _, _, err := Paths(t.TempDir()); err == nil {
		t.Error("expected an error for an empty directory")
	}
}

func TestOpenDirectory(t *testing.T) {
	reg := dddb.NewRegistry(dddb.Resources())
	path := writeProduct(t, reg, smostest.Product{Format: browseFull, Locations: testLocations[:1]})
	p, err := Open(reg, filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if p.Name() != smostest.FileName(browseFull) {
		t.Errorf("name %s", p.Name())
	}
	if v := p.Header().Value("Fixed_Header", "Source", "Creation_Date"); v != "UTC=2010-04-06T02:00:00" {
		t.Errorf("creation date %q", v)
	}
}

func TestOpenUnknownSchema(t *testing.T) {
	dir := t.TempDir()
	hdr := `<Earth_Explorer_Header xmlns="urn:x"><Datablock_Schema>DBL_SM_XXXX_MIR_XXXX1C_0200</Datablock_Schema></Earth_Explorer_Header>`
	if err := os.WriteFile(filepath.Join(dir, "a.HDR"), []byte(hdr), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dddb.NewRegistry(dddb.Resources()), filepath.Join(dir, "a.HDR")); err == nil {
		t.Error("expected an error")
	}
}

func TestHeaderLeaves(t *testing.T) {
	doc := `<h xmlns="urn:x"><A><B>1</B><B>2</B></A><C> three </C><D/></h>`
	root, err := ParseHeader(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]string)
	root.Leaves(func(path []string, e *Element) {
		got[strings.Join(path, ".")] = e.Text
	})
	want := map[string]string{"A.B": "1", "A.B_1": "2", "C": "three", "D": ""}
	if len(got) != len(want) {
		t.Errorf("%v != %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: %q != %q", k, got[k], v)
		}
	}
	if root.Find("A", "X") != nil {
		t.Error("unexpected element")
	}
}

func TestPagedReader(t *testing.T) {
	data := make([]byte, 3*pageSize+17)
	for i := range data {
		data[i] = byte(i * 7)
	}
	r := newPagedReader(bytes.NewReader(data), int64(len(data)))
	for _, test := range []struct {
		off int64
		n   int
	}{{0, 10}, {pageSize - 3, 8}, {2*pageSize - 1, pageSize + 2}, {int64(len(data)) - 5, 5}} {
		b := make([]byte, test.n)
		if _, err := r.ReadAt(b, test.off); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(b, data[test.off:test.off+int64(test.n)]) {
			t.Errorf("read at %d differs", test.off)
		}
	}
	b := make([]byte, 10)
	n, err := r.ReadAt(b, int64(len(data))-4)
	if err != io.EOF || n != 4 {
		t.Errorf("got %d, %v at end of data", n, err)
	}
}

func TestOpenCorruptCounter(t *testing.T) {
	reg := dddb.NewRegistry(dddb.Resources())
	path := writeProduct(t, reg, smostest.Product{Format: browseFull, Locations: testLocations})
	_, dbl, err := Paths(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbl, []byte{0xff, 0xff, 0xff, 0xff}, 0644); err != nil {
		t.Fatal(err)
	}
	p, err := Open(reg, path)
	if err == nil {
		p.Close()
		t.Fatal("expected an error for a grid point count larger than the data block")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want a data size error", err)
	}
}
