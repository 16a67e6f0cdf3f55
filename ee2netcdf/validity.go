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
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/bcdev/smos-box-sub001/binx"
	"github.com/bcdev/smos-box-sub001/dddb"
)

// validity evaluates the valid pixel expression of a band on the records
// of one type. It is not safe for concurrent use.
type validity struct {
	expression string
	expr       *govaluate.EvaluableExpression
	names      []string
	index      []int
	params     map[string]interface{}
}

// newValidity compiles expression for records of type t. Names in the
// expression are band names, resolved to members through bands, or member
// names. Values are raw, so a ".raw" suffix on a name is ignored.
func newValidity(expression string, bands *dddb.Family[*dddb.BandDescriptor], t *binx.CompoundType) (*validity, error) {
	expr, err := govaluate.NewEvaluableExpression(strings.ReplaceAll(expression, ".raw", ""))
	if err != nil {
		return nil, fmt.Errorf("ee2netcdf: valid pixel expression %q: %v", expression, err)
	}
	v := &validity{expression: expression, expr: expr, params: make(map[string]interface{})}
	for _, name := range expr.Vars() {
		if _, ok := v.params[name]; ok {
			continue
		}
		member := name
		if bands != nil {
			if b, ok := bands.Get(name); ok {
				member = b.MemberName()
			}
		}
		i := t.MemberIndex(member)
		if i < 0 {
			return nil, fmt.Errorf("ee2netcdf: valid pixel expression %q: %s has no member %s", expression, t.TypeName(), member)
		}
		if _, ok := t.Member(i).Type.(binx.SimpleType); !ok {
			return nil, fmt.Errorf("ee2netcdf: valid pixel expression %q: member %s is not a number", expression, member)
		}
		v.names = append(v.names, name)
		v.index = append(v.index, i)
		v.params[name] = 0.0
	}
	return v, nil
}

// valid reports whether the expression holds for record c.
func (v *validity) valid(c *binx.CompoundData) (bool, error) {
	for k, i := range v.index {
		x, err := c.Value(i)
		if err != nil {
			return false, err
		}
		v.params[v.names[k]] = x
	}
	r, err := v.expr.Evaluate(v.params)
	if err != nil {
		return false, fmt.Errorf("ee2netcdf: evaluating %q: %v", v.expression, err)
	}
	ok, isBool := r.(bool)
	if !isBool {
		return false, fmt.Errorf("ee2netcdf: valid pixel expression %q is not a condition", v.expression)
	}
	return ok, nil
}
