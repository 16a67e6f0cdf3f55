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

package dgg

import (
	"math"

	"github.com/ctessum/geom"
)

// Size of the global DGG raster in pixels.
const (
	RasterWidth  = 16384
	RasterHeight = 8192
)

// Raster is a rectangle of pixels of the global DGG raster. X grows to
// the east from longitude -180, Y to the south from latitude 90.
type Raster struct {
	X, Y          int
	Width, Height int
}

// PixelSize returns the edge length of a raster pixel in degrees.
func PixelSize() float64 { return 360.0 / RasterWidth }

// RasterRegion returns the smallest rectangle of raster pixels covering b.
func RasterRegion(b *geom.Bounds) Raster {
	x0 := clampPixel(math.Floor((b.Min.X+180)/360*RasterWidth), RasterWidth)
	x1 := clampPixel(math.Ceil((b.Max.X+180)/360*RasterWidth), RasterWidth)
	y0 := clampPixel(math.Floor((90-b.Max.Y)/180*RasterHeight), RasterHeight)
	y1 := clampPixel(math.Ceil((90-b.Min.Y)/180*RasterHeight), RasterHeight)
	return Raster{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func clampPixel(v float64, n int) int {
	if v < 0 {
		return 0
	}
	if v > float64(n) {
		return n
	}
	return int(v)
}
