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
	"encoding/csv"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"
)

// Wildcard is the table token that selects the default value of a column.
const Wildcard = "*"

// readTable reads a pipe-delimited descriptor table. Comment lines
// (starting with '#') and blank lines are ignored, and the first
// remaining line is the column header, which is skipped as well. Rows may
// have fewer columns than the header.
func readTable(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '|'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}
	rows := records[1:]
	for _, row := range rows {
		for i, t := range row {
			row[i] = strings.TrimSpace(t)
		}
	}
	return rows, nil
}

// column returns token i of row, or the wildcard if the row is short.
func column(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return Wildcard
}

func parseString(token, def string) string {
	token = strings.TrimSpace(token)
	if token == Wildcard {
		return def
	}
	return token
}

func parseInt(token string, def int) (int, error) {
	token = strings.TrimSpace(token)
	if token == Wildcard {
		return def, nil
	}
	v, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("dddb: invalid integer %q: %w", token, err)
	}
	return v, nil
}

func parseDouble(token string, def float64) (float64, error) {
	token = strings.TrimSpace(token)
	if token == Wildcard {
		return def, nil
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("dddb: invalid number %q: %w", token, err)
	}
	return v, nil
}

// parseHex parses a hexadecimal literal with or without a "0x" prefix.
func parseHex(token string, def int64) (int64, error) {
	token = strings.TrimSpace(token)
	if token == Wildcard {
		return def, nil
	}
	s := strings.TrimPrefix(strings.TrimPrefix(token, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("dddb: invalid hex value %q: %w", token, err)
	}
	return int64(v), nil
}

func parseBoolean(token string, def bool) (bool, error) {
	token = strings.TrimSpace(token)
	if token == Wildcard {
		return def, nil
	}
	switch strings.ToLower(token) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("dddb: invalid boolean %q", token)
}

// parseColor decodes a packed hex color. Eight-digit literals are
// ARGB, six-digit literals are opaque RGB.
func parseColor(token string, def *color.RGBA) (*color.RGBA, error) {
	token = strings.TrimSpace(token)
	if token == Wildcard {
		return def, nil
	}
	s := strings.TrimPrefix(strings.TrimPrefix(token, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("dddb: invalid color %q: %w", token, err)
	}
	a := uint8(0xff)
	if len(s) > 6 {
		a = uint8(v >> 24)
	}
	return &color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: a}, nil
}

// parseList splits a space separated token into its fields.
func parseList(token string) []string {
	token = strings.TrimSpace(token)
	if token == Wildcard || token == "" {
		return nil
	}
	return strings.Fields(token)
}

// parseIntList parses a list of decimal or "0x"-prefixed hex integers.
func parseIntList(token string) ([]int64, error) {
	var out []int64
	for _, f := range parseList(token) {
		if strings.HasPrefix(f, "0x") || strings.HasPrefix(f, "0X") {
			v, err := parseHex(f, 0)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			continue
		}
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dddb: invalid integer %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}
