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

// Package product opens SMOS Earth Explorer products, a header document
// paired with a binary data block, and gives access to their grid points.
package product

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcdev/smos-box-sub001/binx"
	"github.com/bcdev/smos-box-sub001/dddb"
	"github.com/ctessum/geom"
)

// File name extensions of the header and the data block.
const (
	HeaderExt = ".HDR"
	DataExt   = ".DBL"
)

// Names of the members the access layer relies on.
const (
	GridPointList      = "Grid_Point_List"
	BtDataList         = "BT_Data_List"
	BtDataCounter      = "BT_Data_Counter"
	SnapshotList       = "Snapshot_List"
	GridPointLatitude  = "Grid_Point_Latitude"
	GridPointLongitude = "Grid_Point_Longitude"
)

// Product is an open SMOS product.
type Product struct {
	name       string
	headerPath string
	dataPath   string

	reg    *dddb.Registry
	header *Element
	format *binx.DataFormat

	file       *os.File
	root       *binx.CompoundData
	gridPoints *binx.SequenceData
	gpType     *binx.CompoundType
	btIndex    int
	snapIndex  int
}

// Paths returns the header and data block paths of the product at path,
// which may name the header, the data block or a directory holding both.
func Paths(path string) (header, data string, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("product: %w", err)
	}
	if fi.IsDir() {
		matches, err := filepath.Glob(filepath.Join(path, "*"+HeaderExt))
		if err != nil {
			return "", "", err
		}
		if len(matches) == 0 {
			return "", "", fmt.Errorf("product: no %s file in %s", HeaderExt, path)
		}
		path = matches[0]
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	switch {
	case strings.EqualFold(ext, HeaderExt):
		header = path
		data = sibling(base, ext, DataExt)
	case strings.EqualFold(ext, DataExt):
		data = path
		header = sibling(base, ext, HeaderExt)
	default:
		return "", "", fmt.Errorf("product: %s is neither a %s nor a %s file", path, HeaderExt, DataExt)
	}
	return header, data, nil
}

// sibling returns base with the extension want, in the letter case of
// the extension have.
func sibling(base, have, want string) string {
	if have == strings.ToLower(have) {
		want = strings.ToLower(want)
	}
	return base + want
}

// Open opens the product at path and resolves its data format through
// reg.
func Open(reg *dddb.Registry, path string) (*Product, error) {
	headerPath, dataPath, err := Paths(path)
	if err != nil {
		return nil, err
	}
	hb, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("product: %w", err)
	}
	header, err := ParseHeader(bytes.NewReader(hb))
	if err != nil {
		return nil, fmt.Errorf("product: %s: %w", headerPath, err)
	}
	format, err := reg.DataFormatFromHeader(bytes.NewReader(hb))
	if err != nil {
		return nil, fmt.Errorf("product: %s: %w", headerPath, err)
	}
	p := &Product{
		name:       strings.TrimSuffix(filepath.Base(headerPath), filepath.Ext(headerPath)),
		headerPath: headerPath,
		dataPath:   dataPath,
		reg:        reg,
		header:     header,
		format:     format,
	}
	if err := p.openData(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) openData() error {
	f, err := os.Open(p.dataPath)
	if err != nil {
		return fmt.Errorf("product: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("product: %w", err)
	}
	p.file = f
	p.root = binx.Open(p.format, newPagedReader(f, fi.Size()))
	i := p.root.MemberIndex(GridPointList)
	if i < 0 {
		f.Close()
		return fmt.Errorf("product: format %s has no %s", p.format.Name, GridPointList)
	}
	if p.gridPoints, err = p.root.Sequence(i); err != nil {
		f.Close()
		return fmt.Errorf("product: %s: %w", p.dataPath, err)
	}
	var ok bool
	if p.gpType, ok = p.gridPoints.Type().Element.(*binx.CompoundType); !ok {
		f.Close()
		return fmt.Errorf("product: format %s: grid points are not records", p.format.Name)
	}
	p.btIndex = p.gpType.MemberIndex(BtDataList)
	p.snapIndex = p.root.MemberIndex(SnapshotList)
	return nil
}

// Close closes the data block.
func (p *Product) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

// Name returns the product name, the header file name without extension.
func (p *Product) Name() string { return p.name }

// HeaderPath returns the path of the header document.
func (p *Product) HeaderPath() string { return p.headerPath }

// DataPath returns the path of the data block.
func (p *Product) DataPath() string { return p.dataPath }

// Header returns the root of the header document.
func (p *Product) Header() *Element { return p.header }

// Format returns the data format of the product.
func (p *Product) Format() *binx.DataFormat { return p.format }

// Registry returns the descriptor registry the product was opened with.
func (p *Product) Registry() *dddb.Registry { return p.reg }

// GridPointCount returns the number of grid points.
func (p *Product) GridPointCount() int { return p.gridPoints.Len() }

// GridPointType returns the record type of the grid points.
func (p *Product) GridPointType() *binx.CompoundType { return p.gpType }

// GridPoint returns the record of grid point i. Access in increasing
// order is cheapest when grid points have variable sizes.
func (p *Product) GridPoint(i int) (*binx.CompoundData, error) {
	return p.gridPoints.Compound(i)
}

// HasBtData reports whether grid points carry brightness temperature
// records.
func (p *Product) HasBtData() bool { return p.btIndex >= 0 }

// BtDataType returns the brightness temperature record type, or nil.
func (p *Product) BtDataType() *binx.CompoundType {
	if !p.HasBtData() {
		return nil
	}
	ct, _ := p.gpType.Member(p.btIndex).Type.(*binx.SequenceType).Element.(*binx.CompoundType)
	return ct
}

// BtDataList returns the brightness temperature records of grid point i.
// Their number is the grid point's own BT_Data_Counter.
func (p *Product) BtDataList(i int) (*binx.SequenceData, error) {
	if !p.HasBtData() {
		return nil, fmt.Errorf("product: %s has no %s", p.name, BtDataList)
	}
	gp, err := p.GridPoint(i)
	if err != nil {
		return nil, err
	}
	return gp.Sequence(p.btIndex)
}

// Snapshots returns the snapshot records of the product, or nil if the
// product has none.
func (p *Product) Snapshots() (*binx.SequenceData, error) {
	if p.snapIndex < 0 {
		return nil, nil
	}
	return p.root.Sequence(p.snapIndex)
}

// Locations returns the longitude and latitude of every grid point as
// X and Y.
func (p *Product) Locations() ([]geom.Point, error) {
	lon := p.gpType.MemberIndex(GridPointLongitude)
	lat := p.gpType.MemberIndex(GridPointLatitude)
	if lon < 0 || lat < 0 {
		return nil, fmt.Errorf("product: format %s has no grid point coordinates", p.format.Name)
	}
	points := make([]geom.Point, p.GridPointCount())
	for i := range points {
		gp, err := p.GridPoint(i)
		if err != nil {
			return nil, err
		}
		if points[i].X, err = gp.Value(lon); err != nil {
			return nil, err
		}
		if points[i].Y, err = gp.Value(lat); err != nil {
			return nil, err
		}
	}
	return points, nil
}
