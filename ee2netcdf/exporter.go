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
	"errors"
	"fmt"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/bcdev/smos-box-sub001/binx"
	"github.com/bcdev/smos-box-sub001/dgg"
	"github.com/bcdev/smos-box-sub001/product"
)

// Output dimension names.
const (
	DimGridPoints = "n_grid_points"
	DimBtData     = "n_bt_data"
	DimSnapshots  = "n_snapshots"
)

// Conventions is the value of the Conventions global attribute.
const Conventions = "CF-1.6"

// creationDateLayout is the time layout of the header's UTC timestamps.
const creationDateLayout = "UTC=2006-01-02T15:04:05"

// ErrEmptyRegion is returned when no grid point of a product lies in the
// requested region.
var ErrEmptyRegion = errors.New("ee2netcdf: product does not intersect the region")

// Config holds the options of an export.
type Config struct {
	// Region restricts the export to the grid points inside it. A nil
	// region exports all grid points.
	Region geom.Polygonal
	// Institution and Contact are written as global attributes when set.
	Institution string
	Contact     string
	// Variables restricts the export to the named output variables. All
	// variables are exported when it is empty.
	Variables []string
	// Clock provides the creation date. It defaults to the real clock.
	Clock clockwork.Clock
	Log   logrus.FieldLogger
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	return c
}

// Exporter writes a product to a NetCDF file. Initialize is called first,
// then Dimensions, AddGlobalAttributes and AddVariables declare the file
// and WriteData fills it.
type Exporter interface {
	Initialize(p *product.Product, cfg Config) error
	Dimensions() (names []string, lengths []int)
	AddGlobalAttributes(h *cdf.Header) error
	AddVariables(h *cdf.Header) error
	WriteData(ctx context.Context, f *cdf.File) error
}

// New returns the exporter of variant v.
func New(v Variant) Exporter {
	switch v {
	case Browse, L1C, L2:
		return &exporter{variant: v}
	}
	panic(fmt.Sprintf("ee2netcdf: invalid variant %v", v))
}

type dimension struct {
	name   string
	length int
}

type exporter struct {
	variant Variant
	p       *product.Product
	cfg     Config

	// indices are the source indices of the exported grid points.
	indices   []int
	dims      []dimension
	snapshots *binx.SequenceData
	vars      []*VariableDescriptor
}

func (e *exporter) Initialize(p *product.Product, cfg Config) error {
	e.p, e.cfg = p, cfg.withDefaults()
	n := p.GridPointCount()
	if n == 0 {
		return fmt.Errorf("ee2netcdf: %s has no grid points", p.Name())
	}
	if err := e.selectGridPoints(); err != nil {
		return err
	}
	e.dims = []dimension{{DimGridPoints, len(e.indices)}}
	switch e.variant {
	case Browse:
		e.dims = append(e.dims, dimension{DimBtData, browseBtCount(p.Name())})
	case L1C:
		nbt, err := e.maxBtCount()
		if err != nil {
			return err
		}
		e.dims = append(e.dims, dimension{DimBtData, nbt})
		if e.snapshots, err = p.Snapshots(); err != nil {
			return fmt.Errorf("ee2netcdf: %s: %w", p.Name(), err)
		}
		if e.snapshots != nil && e.snapshots.Len() > 0 {
			e.dims = append(e.dims, dimension{DimSnapshots, e.snapshots.Len()})
		} else {
			e.snapshots = nil
		}
	}
	return e.describeVariables()
}

// selectGridPoints sets the indices of the grid points to export.
func (e *exporter) selectGridPoints() error {
	n := e.p.GridPointCount()
	if e.cfg.Region == nil {
		e.indices = make([]int, n)
		for i := range e.indices {
			e.indices[i] = i
		}
		return nil
	}
	points, err := e.p.Locations()
	if err != nil {
		return fmt.Errorf("ee2netcdf: %s: %w", e.p.Name(), err)
	}
	if !dgg.Intersects(dgg.ComputeArea(points), e.cfg.Region) {
		return ErrEmptyRegion
	}
	e.indices = e.indices[:0]
	for i, pt := range points {
		if dgg.Contains(e.cfg.Region, pt) {
			e.indices = append(e.indices, i)
		}
	}
	if len(e.indices) == 0 {
		return ErrEmptyRegion
	}
	return nil
}

// maxBtCount returns the largest number of BT records of the exported
// grid points, and at least 1.
func (e *exporter) maxBtCount() (int, error) {
	n := 1
	if !e.p.HasBtData() {
		return n, nil
	}
	for _, i := range e.indices {
		bt, err := e.p.BtDataList(i)
		if err != nil {
			return 0, fmt.Errorf("ee2netcdf: %s: grid point %d: %w", e.p.Name(), i, err)
		}
		if bt.Len() > n {
			n = bt.Len()
		}
	}
	return n, nil
}

func (e *exporter) dimensionMap() map[string]int {
	m := make(map[string]int, len(e.dims))
	for _, d := range e.dims {
		m[d.name] = d.length
	}
	return m
}

func (e *exporter) describeVariables() error {
	d, err := newDescriber(e.p.Registry(), e.p.Format().Name, e.dimensionMap())
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(e.cfg.Variables))
	for _, v := range e.cfg.Variables {
		wanted[v] = false
	}
	seen := make(map[string]bool)
	add := func(t *binx.CompoundType, src Source, dims []string) error {
		for i := range t.Members() {
			v, err := d.describe(t, i, src, dims)
			if err != nil {
				return err
			}
			if v == nil {
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[v.Name]; !ok {
					continue
				}
				wanted[v.Name] = true
			}
			if seen[v.Name] {
				e.cfg.Log.WithFields(logrus.Fields{
					"product":  e.p.Name(),
					"variable": v.Name,
				}).Warn("ee2netcdf: skipping duplicate variable")
				continue
			}
			seen[v.Name] = true
			e.vars = append(e.vars, v)
		}
		return nil
	}
	e.vars = nil
	if err := add(e.p.GridPointType(), GridPointSource, []string{DimGridPoints}); err != nil {
		return err
	}
	if e.variant != L2 && e.p.HasBtData() {
		if err := add(e.p.BtDataType(), BtDataSource, []string{DimGridPoints, DimBtData}); err != nil {
			return err
		}
	}
	if e.snapshots != nil {
		if st, ok := e.snapshots.Type().Element.(*binx.CompoundType); ok {
			if err := add(st, SnapshotSource, []string{DimSnapshots}); err != nil {
				return err
			}
		}
	}
	for name, found := range wanted {
		if !found {
			e.cfg.Log.WithFields(logrus.Fields{
				"product":  e.p.Name(),
				"variable": name,
			}).Warn("ee2netcdf: requested variable not found")
		}
	}
	return nil
}

func (e *exporter) Dimensions() (names []string, lengths []int) {
	for _, d := range e.dims {
		names = append(names, d.name)
		lengths = append(lengths, d.length)
	}
	return names, lengths
}

// Variables returns the descriptors of the output variables.
func (e *exporter) Variables() []*VariableDescriptor { return e.vars }

func (e *exporter) productType() string {
	if t := e.p.Header().Value("Fixed_Header", "File_Type"); t != "" {
		return t
	}
	return e.p.Format().Name[12:22]
}

func (e *exporter) AddGlobalAttributes(h *cdf.Header) error {
	h.AddAttribute("", "Conventions", Conventions)
	h.AddAttribute("", "title", fmt.Sprintf("SMOS %s product %s", e.variant, e.p.Name()))
	h.AddAttribute("", "product_type", e.productType())
	h.AddAttribute("", "creation_date", e.cfg.Clock.Now().UTC().Format(creationDateLayout))
	h.AddAttribute("", "total_number_of_grid_points", []int32{int32(len(e.indices))})
	if e.cfg.Institution != "" {
		h.AddAttribute("", "institution", e.cfg.Institution)
	}
	if e.cfg.Contact != "" {
		h.AddAttribute("", "contact", e.cfg.Contact)
	}
	fh := e.p.Header().Find("Fixed_Header")
	if fh == nil {
		return nil
	}
	fh.Leaves(func(path []string, leaf *product.Element) {
		if leaf.Text == "" {
			return
		}
		h.AddAttribute("", "Fixed_Header."+strings.Join(path, "."), leaf.Text)
	})
	return nil
}

func (e *exporter) AddVariables(h *cdf.Header) error {
	for _, v := range e.vars {
		h.AddVariable(v.Name, v.Dimensions, zero(v.Type))
		addVariableAttributes(h, v)
	}
	return nil
}

func addVariableAttributes(h *cdf.Header, v *VariableDescriptor) {
	if v.Unit != "" {
		h.AddAttribute(v.Name, "units", v.Unit)
	}
	if v.Description != "" {
		h.AddAttribute(v.Name, "long_name", v.Description)
	}
	if v.StandardName != "" {
		h.AddAttribute(v.Name, "standard_name", v.StandardName)
	}
	if v.OriginalName != "" {
		h.AddAttribute(v.Name, "original_name", v.OriginalName)
	}
	if v.HasFillValue {
		h.AddAttribute(v.Name, "_FillValue", values(v.Type, v.FillValue))
	}
	if v.HasValidMin {
		h.AddAttribute(v.Name, "valid_min", values(v.Type, v.ValidMin))
	}
	if v.HasValidMax {
		h.AddAttribute(v.Name, "valid_max", values(v.Type, v.ValidMax))
	}
	if v.HasScale {
		h.AddAttribute(v.Name, "scale_factor", []float64{v.ScaleFactor})
	}
	if v.HasOffset {
		h.AddAttribute(v.Name, "add_offset", []float64{v.AddOffset})
	}
	if len(v.FlagMasks) > 0 {
		h.AddAttribute(v.Name, "flag_masks", values(v.Type, floats(v.FlagMasks)...))
	}
	if len(v.FlagValues) > 0 {
		h.AddAttribute(v.Name, "flag_values", values(v.Type, floats(v.FlagValues)...))
	}
	if v.FlagMeanings != "" && (len(v.FlagMasks) > 0 || len(v.FlagValues) > 0) {
		h.AddAttribute(v.Name, "flag_meanings", v.FlagMeanings)
	}
	if v.Unsigned {
		h.AddAttribute(v.Name, "_Unsigned", "true")
	}
}

func floats(vs []int64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}

// checkInterval is the number of grid points written between checks for
// cancellation.
const checkInterval = 1024

func (e *exporter) WriteData(ctx context.Context, f *cdf.File) error {
	dims := e.dimensionMap()
	var gpWriters, snapWriters []variableWriter
	var hasBt bool
	for _, v := range e.vars {
		width := 1
		if len(v.Dimensions) > 1 {
			width = dims[v.Dimensions[1]]
		}
		valid, err := e.validity(v)
		if err != nil {
			e.cfg.Log.WithFields(logrus.Fields{
				"product":  e.p.Name(),
				"variable": v.Name,
			}).WithError(err).Warn("ee2netcdf: ignoring valid pixel expression")
		}
		w := newVariableWriter(v, dims[v.Dimensions[0]], width, valid)
		switch v.Source {
		case SnapshotSource:
			snapWriters = append(snapWriters, w)
		case BtDataSource:
			hasBt = true
			fallthrough
		default:
			gpWriters = append(gpWriters, w)
		}
	}
	err := e.stream(ctx, gpWriters, snapWriters, hasBt)
	for _, w := range append(gpWriters, snapWriters...) {
		if err != nil {
			w.release()
			continue
		}
		err = w.close(f)
	}
	return err
}

// validity returns the valid pixel check of v, or nil if v has none.
func (e *exporter) validity(v *VariableDescriptor) (*validity, error) {
	if v.ValidPixelExpression == "" {
		return nil, nil
	}
	var t *binx.CompoundType
	switch v.Source {
	case GridPointSource:
		t = e.p.GridPointType()
	case BtDataSource:
		t = e.p.BtDataType()
	case SnapshotSource:
		t, _ = e.snapshots.Type().Element.(*binx.CompoundType)
	}
	if t == nil {
		return nil, fmt.Errorf("ee2netcdf: no record type for %s", v.Name)
	}
	bands, err := e.p.Registry().BandDescriptors(e.p.Format().Name)
	if err != nil {
		return nil, err
	}
	return newValidity(v.ValidPixelExpression, bands, t)
}

func (e *exporter) stream(ctx context.Context, gpWriters, snapWriters []variableWriter, hasBt bool) error {
	btIndex := e.p.GridPointType().MemberIndex(product.BtDataList)
	for out, i := range e.indices {
		if out%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		gp, err := e.p.GridPoint(i)
		if err != nil {
			return fmt.Errorf("ee2netcdf: %s: grid point %d: %w", e.p.Name(), i, err)
		}
		var bt *binx.SequenceData
		if hasBt {
			if bt, err = gp.Sequence(btIndex); err != nil {
				return fmt.Errorf("ee2netcdf: %s: grid point %d: %w", e.p.Name(), i, err)
			}
		}
		for _, w := range gpWriters {
			if err := w.write(gp, bt, out); err != nil {
				return err
			}
		}
	}
	if len(snapWriters) == 0 {
		return nil
	}
	for k := 0; k < e.snapshots.Len(); k++ {
		rec, err := e.snapshots.Compound(k)
		if err != nil {
			return fmt.Errorf("ee2netcdf: %s: snapshot %d: %w", e.p.Name(), k, err)
		}
		for _, w := range snapWriters {
			if err := w.write(rec, nil, k); err != nil {
				return err
			}
		}
	}
	return nil
}
