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

package smosutil

import (
	"fmt"
	"io"

	"github.com/bcdev/smos-box-sub001/dddb"
	"github.com/bcdev/smos-box-sub001/dgg"
	"github.com/bcdev/smos-box-sub001/ee2netcdf"
	"github.com/bcdev/smos-box-sub001/product"
)

// Info writes a summary of the product at path to w.
func Info(w io.Writer, reg *dddb.Registry, path string) error {
	p, err := product.Open(reg, path)
	if err != nil {
		return err
	}
	defer p.Close()

	variant := "unsupported"
	if v, err := ee2netcdf.Classify(p.Name()); err == nil {
		variant = v.String()
	}
	fmt.Fprintf(w, "%s\n", p.Name())
	fmt.Fprintf(w, "  format:      %s\n", p.Format().Name)
	fmt.Fprintf(w, "  variant:     %s\n", variant)
	fmt.Fprintf(w, "  validity:    %s / %s\n",
		p.Header().Value("Fixed_Header", "Validity_Period", "Validity_Start"),
		p.Header().Value("Fixed_Header", "Validity_Period", "Validity_Stop"))
	fmt.Fprintf(w, "  grid points: %d\n", p.GridPointCount())
	snapshots, err := p.Snapshots()
	if err != nil {
		return err
	}
	if snapshots != nil {
		fmt.Fprintf(w, "  snapshots:   %d\n", snapshots.Len())
	}
	points, err := p.Locations()
	if err != nil {
		return err
	}
	area := dgg.ComputeArea(points)
	if area.Empty() {
		return nil
	}
	b := area.Bounds()
	fmt.Fprintf(w, "  area:        %d tiles, lon %g..%g, lat %g..%g\n",
		len(area.Tiles()), b.Min.X, b.Max.X, b.Min.Y, b.Max.Y)
	return nil
}
