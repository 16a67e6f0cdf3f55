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
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ParseRegion parses a region given as WKT or GeoJSON text, or as the
// path of a file holding either. Coordinates are longitude and latitude
// in degrees.
func ParseRegion(s string) (geom.Polygonal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("dgg: empty region")
	}
	if r, ok, err := parseRegionText(s); ok {
		return r, err
	}
	b, err := os.ReadFile(s)
	if err != nil {
		return nil, fmt.Errorf("dgg: region %q is neither WKT, GeoJSON nor a readable file: %w", s, err)
	}
	r, ok, err := parseRegionText(strings.TrimSpace(string(b)))
	if !ok {
		return nil, fmt.Errorf("dgg: region file %s holds neither WKT nor GeoJSON", s)
	}
	if err != nil {
		return nil, fmt.Errorf("dgg: region file %s: %w", s, err)
	}
	return r, nil
}

// parseRegionText parses s if it looks like WKT or GeoJSON. ok reports
// whether it did.
func parseRegionText(s string) (r geom.Polygonal, ok bool, err error) {
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "POLYGON"), strings.HasPrefix(upper, "MULTIPOLYGON"):
		r, err = parseWKT(s)
		return r, true, err
	case strings.HasPrefix(s, "{"):
		r, err = parseGeoJSON(s)
		return r, true, err
	}
	return nil, false, nil
}

func parseWKT(s string) (geom.Polygonal, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("dgg: invalid WKT region: %w", err)
	}
	switch t := g.(type) {
	case *gogeom.Polygon:
		return polygon(t.Coords()), nil
	case *gogeom.MultiPolygon:
		var mp geom.MultiPolygon
		for _, p := range t.Coords() {
			mp = append(mp, polygon(p))
		}
		return mp, nil
	}
	return nil, fmt.Errorf("dgg: region must be a polygon, not %T", g)
}

func polygon(rings [][]gogeom.Coord) geom.Polygon {
	p := make(geom.Polygon, len(rings))
	for i, ring := range rings {
		for _, c := range ring {
			p[i] = append(p[i], geom.Point{X: c.X(), Y: c.Y()})
		}
	}
	return p
}

func parseGeoJSON(s string) (geom.Polygonal, error) {
	g, err := geojson.Decode([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("dgg: invalid GeoJSON region: %w", err)
	}
	switch t := g.(type) {
	case geom.Polygon:
		return t, nil
	case geom.MultiPolygon:
		return t, nil
	}
	return nil, fmt.Errorf("dgg: region must be a polygon, not %T", g)
}

// Intersects reports whether region shares a part of positive size with
// area.
func Intersects(area *Area, region geom.Polygonal) bool {
	rb := region.Bounds()
	for _, i := range area.Tiles() {
		tb := tileBounds(i)
		if !tb.Overlaps(rb) {
			continue
		}
		if Tile(i).Intersection(region).Area() > 0 {
			return true
		}
	}
	return false
}

// Contains reports whether p lies in region or on its boundary.
func Contains(region geom.Polygonal, p geom.Point) bool {
	p.X = NormalizeLon(p.X)
	return p.Within(region) != geom.Outside
}
