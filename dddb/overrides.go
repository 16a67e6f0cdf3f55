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
	"io/fs"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/bcdev/smos-box-sub001/binx"
)

// overridesFile is the resource holding the layout override tables.
const overridesFile = "overrides.toml"

// layoutOverride holds member renames and inlining hints for the formats
// whose names match Pattern.
type layoutOverride struct {
	Pattern       string            `toml:"pattern"`
	Rename        map[string]string `toml:"rename"`
	InlineStructs []string          `toml:"inline_structs"`
	InlineArrays  []string          `toml:"inline_arrays"`

	re *regexp.Regexp
}

type overrideTables struct {
	Format []*layoutOverride `toml:"format"`
}

// readOverrides reads the override tables. A missing resource yields no
// overrides.
func readOverrides(fsys fs.FS) ([]*layoutOverride, error) {
	b, err := fs.ReadFile(fsys, overridesFile)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var t overrideTables
	if _, err := toml.Decode(string(b), &t); err != nil {
		return nil, fmt.Errorf("dddb: decoding %s: %w", overridesFile, err)
	}
	for _, o := range t.Format {
		if o.re, err = regexp.Compile(o.Pattern); err != nil {
			return nil, fmt.Errorf("dddb: %s: invalid pattern %q: %w", overridesFile, o.Pattern, err)
		}
	}
	return t.Format, nil
}

// layoutOptions merges the overrides matching formatName. Later tables
// take precedence for renames.
func layoutOptions(overrides []*layoutOverride, formatName string) binx.Options {
	var opts binx.Options
	for _, o := range overrides {
		if !o.re.MatchString(formatName) {
			continue
		}
		if len(o.Rename) > 0 && opts.Rename == nil {
			opts.Rename = make(map[string]string)
		}
		for k, v := range o.Rename {
			opts.Rename[k] = v
		}
		opts.InlineStructs = append(opts.InlineStructs, o.InlineStructs...)
		opts.InlineArrays = append(opts.InlineArrays, o.InlineArrays...)
	}
	return opts
}
