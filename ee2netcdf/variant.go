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

// Package ee2netcdf exports SMOS Earth Explorer products to NetCDF files
// following the CF conventions.
package ee2netcdf

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// Variant is the kind of export applied to a product.
type Variant int

// The export variants.
const (
	Browse Variant = iota + 1
	L1C
	L2
)

func (v Variant) String() string {
	switch v {
	case Browse:
		return "Browse"
	case L1C:
		return "L1C"
	case L2:
		return "L2"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

var (
	browsePattern = regexp.MustCompile(`MIR_BW[LSA]([FD])1C`)
	l1cPattern    = regexp.MustCompile(`MIR_SC[LS][FD]1C`)
	l2Pattern     = regexp.MustCompile(`MIR_(OS|SM)UDP2`)
)

// UnsupportedProductError is returned for products no variant applies to.
type UnsupportedProductError struct {
	File string
}

func (e *UnsupportedProductError) Error() string {
	return fmt.Sprintf("ee2netcdf: unsupported product %s", e.File)
}

// Classify returns the export variant of the product file fileName.
func Classify(fileName string) (Variant, error) {
	base := filepath.Base(fileName)
	switch {
	case browsePattern.MatchString(base):
		return Browse, nil
	case l1cPattern.MatchString(base):
		return L1C, nil
	case l2Pattern.MatchString(base):
		return L2, nil
	}
	return 0, &UnsupportedProductError{File: fileName}
}

// browseBtCount returns the number of BT records per grid point of a
// browse product: 4 for full and 2 for dual polarisation.
func browseBtCount(fileName string) int {
	m := browsePattern.FindStringSubmatch(filepath.Base(fileName))
	if m != nil && m[1] == "D" {
		return 2
	}
	return 4
}
