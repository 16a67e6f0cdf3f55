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
	"fmt"
	"math"
	"strings"
)

// BandDescriptor describes one band of a product format: the binary
// member holding its samples, how raw values are scaled, and display and
// flag information.
type BandDescriptor struct {
	name                 string
	memberName           string
	polarization         int
	sampleModel          int
	scalingOffset        float64
	scalingFactor        float64
	typicalMin           float64
	typicalMax           float64
	cyclic               bool
	fillValue            float64
	validPixelExpression string
	unit                 string
	description          string
	flagCodingName       string
	flagDescriptors      *Family[*FlagDescriptor]
}

// Name returns the band name, which is unique within a format.
func (b *BandDescriptor) Name() string { return b.name }

// MemberName returns the name of the binary member holding the band's
// values. It defaults to the band name.
func (b *BandDescriptor) MemberName() string { return b.memberName }

// Polarization returns the polarization code, or -1 if not applicable.
func (b *BandDescriptor) Polarization() int { return b.polarization }
func (b *BandDescriptor) SampleModel() int { return b.sampleModel }
func (b *BandDescriptor) ScalingOffset() float64 { return b.scalingOffset }
func (b *BandDescriptor) ScalingFactor() float64 { return b.scalingFactor }
func (b *BandDescriptor) TypicalMin() float64 { return b.typicalMin }
func (b *BandDescriptor) TypicalMax() float64 { return b.typicalMax }
func (b *BandDescriptor) HasTypicalMin() bool { return !math.IsInf(b.typicalMin, 0) }
func (b *BandDescriptor) HasTypicalMax() bool { return !math.IsInf(b.typicalMax, 0) }
func (b *BandDescriptor) Cyclic() bool { return b.cyclic }
func (b *BandDescriptor) FillValue() float64 { return b.fillValue }
func (b *BandDescriptor) HasFillValue() bool { return !math.IsNaN(b.fillValue) }
func (b *BandDescriptor) Unit() string { return b.unit }
func (b *BandDescriptor) Description() string { return b.description }
func (b *BandDescriptor) FlagCodingName() string { return b.flagCodingName }
func (b *BandDescriptor) ValidPixelExpression() string { return b.validPixelExpression }

// Scaled applies the band's linear scaling to a raw value.
func (b *BandDescriptor) Scaled(raw float64) float64 {
	return b.scalingOffset + b.scalingFactor*raw
}

// FlagDescriptors returns the flags of the band, or nil if the band has
// no flag coding. The family is the same value the registry returns for
// the flag family identifier.
func (b *BandDescriptor) FlagDescriptors() *Family[*FlagDescriptor] {
	return b.flagDescriptors
}

// parseBandDescriptor parses one row of a band table. flags resolves a
// flag family identifier.
func parseBandDescriptor(row []string, flags func(id string) (*Family[*FlagDescriptor], error)) (*BandDescriptor, error) {
	b := new(BandDescriptor)
	b.name = parseString(column(row, 0), "")
	if b.name == "" {
		return nil, fmt.Errorf("dddb: band row without name")
	}
	b.memberName = parseString(column(row, 1), b.name)
	var err error
	if b.polarization, err = parseInt(column(row, 2), -1); err != nil {
		return nil, err
	}
	if b.sampleModel, err = parseInt(column(row, 3), 0); err != nil {
		return nil, err
	}
	if b.scalingOffset, err = parseDouble(column(row, 4), 0); err != nil {
		return nil, err
	}
	if b.scalingFactor, err = parseDouble(column(row, 5), 1); err != nil {
		return nil, err
	}
	if b.typicalMin, err = parseDouble(column(row, 6), math.Inf(-1)); err != nil {
		return nil, err
	}
	if b.typicalMax, err = parseDouble(column(row, 7), math.Inf(1)); err != nil {
		return nil, err
	}
	if b.cyclic, err = parseBoolean(column(row, 8), false); err != nil {
		return nil, err
	}
	if b.fillValue, err = parseDouble(column(row, 9), math.NaN()); err != nil {
		return nil, err
	}
	b.validPixelExpression = strings.Replace(parseString(column(row, 10), ""), "${name}", b.name, -1)
	b.unit = parseString(column(row, 11), "")
	b.description = parseString(column(row, 12), "")
	b.flagCodingName = parseString(column(row, 13), "")
	if id := parseString(column(row, 14), ""); id != "" && b.flagCodingName != "" {
		if b.flagDescriptors, err = flags(id); err != nil {
			return nil, err
		}
	}
	return b, nil
}
