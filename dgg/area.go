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

// Package dgg approximates the area covered by grid points of the SMOS
// discrete global grid and relates it to user supplied regions.
package dgg

import (
	"math"

	"github.com/ctessum/geom"
)

// Tiling of the sphere used to approximate areas.
const (
	TileSize = 11.25
	TileCols = 32
	TileRows = 16
)

// DefaultBoxSize is the edge length in degrees of the box placed around
// each grid point.
const DefaultBoxSize = 0.04

// Option configures ComputeArea.
type Option func(*config)

type config struct {
	boxSize float64
}

// BoxSize sets the edge length in degrees of the box placed around each
// grid point.
func BoxSize(degrees float64) Option {
	return func(c *config) { c.boxSize = degrees }
}

// Area is a union of tiles covering a set of grid points.
type Area struct {
	member [TileCols * TileRows]bool
	poly   geom.Polygon
}

// NormalizeLon maps a longitude into [-180, 180).
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// box returns the box of the given edge length centred on p, clipped to
// the sphere.
func box(p geom.Point, size float64) *geom.Bounds {
	h := size / 2
	x := NormalizeLon(p.X)
	return &geom.Bounds{
		Min: geom.Point{X: math.Max(x-h, -180), Y: math.Max(p.Y-h, -90)},
		Max: geom.Point{X: math.Min(x+h, 180), Y: math.Min(p.Y+h, 90)},
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// tileRange returns the column and row ranges of the tiles intersecting
// b. Tiles that only touch the upper edges of b are excluded.
func tileRange(b *geom.Bounds) (c0, c1, r0, r1 int) {
	c0 = clampIndex(int(math.Floor((b.Min.X+180)/TileSize)), TileCols)
	c1 = clampIndex(int(math.Ceil((b.Max.X+180)/TileSize))-1, TileCols)
	r0 = clampIndex(int(math.Floor((b.Min.Y+90)/TileSize)), TileRows)
	r1 = clampIndex(int(math.Ceil((b.Max.Y+90)/TileSize))-1, TileRows)
	if c1 < c0 {
		c1 = c0
	}
	if r1 < r0 {
		r1 = r0
	}
	return
}

// Tile returns the polygon of tile i, an open ring. Tiles are numbered
// row by row starting at longitude -180, latitude -90.
func Tile(i int) geom.Polygon {
	b := tileBounds(i)
	return geom.Polygon{{
		b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y},
	}}
}

func tileBounds(i int) *geom.Bounds {
	x := -180 + float64(i%TileCols)*TileSize
	y := -90 + float64(i/TileCols)*TileSize
	return &geom.Bounds{Min: geom.Point{X: x, Y: y}, Max: geom.Point{X: x + TileSize, Y: y + TileSize}}
}

// covers reports whether every tile intersecting b is part of a.
func (a *Area) covers(b *geom.Bounds) bool {
	c0, c1, r0, r1 := tileRange(b)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if !a.member[r*TileCols+c] {
				return false
			}
		}
	}
	return true
}

// ComputeArea returns the union of the tiles overlapping the boxes
// around points. Points are longitude (X) and latitude (Y) in degrees.
func ComputeArea(points []geom.Point, opts ...Option) *Area {
	cfg := config{boxSize: DefaultBoxSize}
	for _, o := range opts {
		o(&cfg)
	}
	a := new(Area)
	for _, p := range points {
		b := box(p, cfg.boxSize)
		if a.covers(b) {
			continue
		}
		c0, c1, r0, r1 := tileRange(b)
	tiles:
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				i := r*TileCols + c
				if a.member[i] {
					continue
				}
				a.member[i] = true
				a.poly = a.poly.Union(Tile(i))
				if a.covers(b) {
					break tiles
				}
			}
		}
	}
	return a
}

// Empty reports whether the area holds no tile.
func (a *Area) Empty() bool { return len(a.Tiles()) == 0 }

// Tiles returns the indices of the tiles forming the area in increasing
// order.
func (a *Area) Tiles() []int {
	var t []int
	for i, m := range a.member {
		if m {
			t = append(t, i)
		}
	}
	return t
}

// Polygon returns the outline of the area.
func (a *Area) Polygon() geom.Polygon { return a.poly }

// Bounds returns the bounding box of the area.
func (a *Area) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, i := range a.Tiles() {
		b.Extend(tileBounds(i))
	}
	return b
}

// Contains reports whether the box of the given size around p lies in a.
func (a *Area) Contains(p geom.Point, size float64) bool {
	return a.covers(box(p, size))
}
