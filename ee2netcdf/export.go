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
	"context"
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/sirupsen/logrus"

	"github.com/bcdev/smos-box-sub001/dgg"
	"github.com/bcdev/smos-box-sub001/product"
)

// Result summarizes a finished export.
type Result struct {
	Variant    Variant
	Target     string
	GridPoints int
	Variables  int
	// Raster is the part of the global DGG raster covering the region of
	// a region filtered export, and nil otherwise.
	Raster *dgg.Raster
}

// Export writes product p to the NetCDF file target. No file is created
// when the product cannot be exported or, with ErrEmptyRegion, when none
// of its grid points lies in cfg.Region. A partially written file is
// removed when writing fails.
func Export(ctx context.Context, p *product.Product, target string, cfg Config) (res *Result, err error) {
	cfg = cfg.withDefaults()
	v, err := Classify(p.Name())
	if err != nil {
		return nil, err
	}
	log := cfg.Log.WithFields(logrus.Fields{
		"product": p.Name(),
		"variant": v,
		"target":  target,
	})
	e := New(v)
	if err = e.Initialize(p, cfg); err != nil {
		return nil, err
	}
	names, lengths := e.Dimensions()
	h := cdf.NewHeader(names, lengths)
	if err = e.AddGlobalAttributes(h); err != nil {
		return nil, err
	}
	if err = e.AddVariables(h); err != nil {
		return nil, err
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("ee2netcdf: %s: invalid output header: %v", p.Name(), errs)
	}

	ff, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("ee2netcdf: %w", err)
	}
	defer func() {
		if cerr := ff.Close(); cerr != nil && err == nil {
			res, err = nil, fmt.Errorf("ee2netcdf: %w", cerr)
		}
		if err != nil {
			os.Remove(target)
		}
	}()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return nil, fmt.Errorf("ee2netcdf: creating %s: %w", target, err)
	}
	log.WithField("dimensions", fmt.Sprint(names, lengths)).Debug("ee2netcdf: writing data")
	if err = e.WriteData(ctx, f); err != nil {
		return nil, err
	}
	if err = cdf.UpdateNumRecs(ff); err != nil {
		return nil, fmt.Errorf("ee2netcdf: %w", err)
	}

	res = &Result{
		Variant:    v,
		Target:     target,
		GridPoints: lengths[0],
		Variables:  len(h.Variables()),
	}
	if cfg.Region != nil {
		r := dgg.RasterRegion(cfg.Region.Bounds())
		res.Raster = &r
	}
	log.WithFields(logrus.Fields{
		"grid_points": res.GridPoints,
		"variables":   res.Variables,
	}).Info("ee2netcdf: exported product")
	return res, nil
}
