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

// Package dddb holds the SMOS data descriptor database: band, flag and
// member descriptor tables and the BinX schemas of the product formats,
// and a registry that loads and caches them.
package dddb

import (
	"context"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/bcdev/smos-box-sub001/binx"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
)

//go:embed resources
var resources embed.FS

// Resources returns the descriptor database shipped with this module.
func Resources() fs.FS {
	sub, err := fs.Sub(resources, "resources")
	if err != nil {
		panic(err)
	}
	return sub
}

// FormatNameLength is the length of a format name, for example
// DBL_SM_XXXX_MIR_BWLF1C_0200.
const FormatNameLength = 27

var (
	formatIDPattern = regexp.MustCompile(`^(DBL|AUX)_(SM|OS)_[A-Z]{4}_[A-Z0-9_]{10}_\d{4}$`)
	flagIDPattern   = regexp.MustCompile(`^(DBL|AUX)_(SM|OS)_[A-Z]{4}_[A-Z0-9_]{10}_\d{4}_\w+$`)
)

// Resource kinds and suffixes.
const (
	bandsDir   = "bands"
	flagsDir   = "flags"
	membersDir = "members"
	schemasDir = "schemas"
	csvSuffix  = ".csv"
	binxSuffix = ".binXschema.xml"
)

// cacheSize bounds the number of entries of each registry cache. It is
// far above the number of formats in the database so that nothing is
// ever evicted.
const cacheSize = 1 << 12

// MalformedError reports a descriptor table that cannot be parsed.
type MalformedError struct {
	ID       string
	Resource string
	Err      error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("dddb: malformed descriptors for %s in %s: %v", e.ID, e.Resource, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// SchemaError reports a BinX schema that cannot be turned into a format.
type SchemaError struct {
	Format   string
	Resource string
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dddb: cannot build format %s from %s: %v", e.Format, e.Resource, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Registry loads descriptors and formats on first request and keeps them
// for its lifetime. It is safe for concurrent use; every identifier
// resolves to exactly one value.
type Registry struct {
	fsys fs.FS

	// Log receives loading messages.
	Log logrus.FieldLogger

	bandCache, flagCache, memberCache, formatCache *requestcache.Cache
	// committed holds the first value loaded for each key.
	committed sync.Map

	overridesOnce sync.Once
	overrides     []*layoutOverride
	overridesErr  error
}

// loaded is the cached outcome of one load, including failures.
type loaded struct {
	v   interface{}
	err error
}

// NewRegistry creates a registry reading its resources from fsys.
func NewRegistry(fsys fs.FS) *Registry {
	r := &Registry{fsys: fsys, Log: logrus.StandardLogger()}
	n := runtime.GOMAXPROCS(-1)
	newCache := func(load func(id string) (interface{}, error)) *requestcache.Cache {
		return requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			v, err := load(request.(string))
			return loaded{v: v, err: err}, nil
		}, n, requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	}
	r.bandCache = newCache(r.loadBands)
	r.flagCache = newCache(r.loadFlags)
	r.memberCache = newCache(r.loadMembers)
	r.formatCache = newCache(r.loadFormat)
	return r
}

// get returns the value cached under kind and id, loading it if needed.
// The first value committed for a key is the one every caller sees.
func (r *Registry) get(c *requestcache.Cache, kind, id string) (interface{}, error) {
	key := kind + "/" + id
	if v, ok := r.committed.Load(key); ok {
		l := v.(loaded)
		return l.v, l.err
	}
	res, err := c.NewRequest(context.TODO(), id, key).Result()
	if err != nil {
		return nil, err
	}
	v, _ := r.committed.LoadOrStore(key, res.(loaded))
	l := v.(loaded)
	return l.v, l.err
}

// resourcePath derives the resource path of an identifier: the kind
// directory, then shards of four and six characters from the identifier.
func resourcePath(kind, id, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s%s", kind, id[12:16], id[16:22], id, suffix)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// readRows reads a descriptor table. It returns nil rows and a nil error
// if the resource does not exist.
func (r *Registry) readRows(path string) ([][]string, error) {
	f, err := r.fsys.Open(path)
	if err != nil {
		if isNotExist(err) {
			r.Log.WithFields(logrus.Fields{"resource": path}).Debug("dddb: no descriptor table")
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	r.Log.WithFields(logrus.Fields{"resource": path}).Debug("dddb: loading descriptor table")
	return readTable(f)
}

// BandDescriptors returns the band descriptors of a format, or nil if the
// database holds none for it.
func (r *Registry) BandDescriptors(formatID string) (*Family[*BandDescriptor], error) {
	if !formatIDPattern.MatchString(formatID) {
		return nil, nil
	}
	v, err := r.get(r.bandCache, bandsDir, formatID)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Family[*BandDescriptor]), nil
}

func (r *Registry) loadBands(id string) (interface{}, error) {
	path := resourcePath(bandsDir, id, csvSuffix)
	rows, err := r.readRows(path)
	if err != nil {
		return nil, &MalformedError{ID: id, Resource: path, Err: err}
	}
	if rows == nil {
		return nil, nil
	}
	bands := make([]*BandDescriptor, 0, len(rows))
	for i, row := range rows {
		b, err := parseBandDescriptor(row, r.FlagDescriptors)
		if err != nil {
			return nil, &MalformedError{ID: id, Resource: path, Err: fmt.Errorf("row %d: %w", i+1, err)}
		}
		bands = append(bands, b)
	}
	return NewFamily(bands), nil
}

// FlagDescriptors returns a flag family, or nil if the database holds
// none for the identifier. Flag family identifiers are format names
// followed by a flag group suffix.
func (r *Registry) FlagDescriptors(flagFamilyID string) (*Family[*FlagDescriptor], error) {
	if !flagIDPattern.MatchString(flagFamilyID) {
		return nil, nil
	}
	v, err := r.get(r.flagCache, flagsDir, flagFamilyID)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Family[*FlagDescriptor]), nil
}

func (r *Registry) loadFlags(id string) (interface{}, error) {
	path := resourcePath(flagsDir, id, csvSuffix)
	rows, err := r.readRows(path)
	if err != nil {
		return nil, &MalformedError{ID: id, Resource: path, Err: err}
	}
	if rows == nil {
		return nil, nil
	}
	flags := make([]*FlagDescriptor, 0, len(rows))
	for i, row := range rows {
		f, err := parseFlagDescriptor(row)
		if err != nil {
			return nil, &MalformedError{ID: id, Resource: path, Err: fmt.Errorf("row %d: %w", i+1, err)}
		}
		flags = append(flags, f)
	}
	return NewFamily(flags), nil
}

// MemberDescriptors returns the member descriptors of a format, or nil if
// the database holds none for it.
func (r *Registry) MemberDescriptors(formatID string) (*Family[*MemberDescriptor], error) {
	if !formatIDPattern.MatchString(formatID) {
		return nil, nil
	}
	v, err := r.get(r.memberCache, membersDir, formatID)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*Family[*MemberDescriptor]), nil
}

func (r *Registry) loadMembers(id string) (interface{}, error) {
	path := resourcePath(membersDir, id, csvSuffix)
	rows, err := r.readRows(path)
	if err != nil {
		return nil, &MalformedError{ID: id, Resource: path, Err: err}
	}
	if rows == nil {
		return nil, nil
	}
	members := make([]*MemberDescriptor, 0, len(rows))
	for i, row := range rows {
		m, err := parseMemberDescriptor(row)
		if err != nil {
			return nil, &MalformedError{ID: id, Resource: path, Err: fmt.Errorf("row %d: %w", i+1, err)}
		}
		members = append(members, m)
	}
	return NewFamily(members), nil
}

// FindBandDescriptorForMember returns the first band of the format whose
// member name is memberName, or nil if there is none.
func (r *Registry) FindBandDescriptorForMember(formatID, memberName string) (*BandDescriptor, error) {
	bands, err := r.BandDescriptors(formatID)
	if err != nil || bands == nil {
		return nil, err
	}
	for _, b := range bands.List() {
		if b.MemberName() == memberName {
			return b, nil
		}
	}
	return nil, nil
}

// DataFormat returns the binary format with the given name, or nil if the
// database holds no schema for it.
func (r *Registry) DataFormat(formatName string) (*binx.DataFormat, error) {
	if !formatIDPattern.MatchString(formatName) {
		return nil, nil
	}
	v, err := r.get(r.formatCache, schemasDir, formatName)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*binx.DataFormat), nil
}

func (r *Registry) loadFormat(name string) (interface{}, error) {
	path := resourcePath(schemasDir, name, binxSuffix)
	f, err := r.fsys.Open(path)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, &SchemaError{Format: name, Resource: path, Err: err}
	}
	defer f.Close()
	r.overridesOnce.Do(func() {
		r.overrides, r.overridesErr = readOverrides(r.fsys)
	})
	if r.overridesErr != nil {
		return nil, &SchemaError{Format: name, Resource: overridesFile, Err: r.overridesErr}
	}
	r.Log.WithFields(logrus.Fields{"resource": path}).Debug("dddb: building data format")
	format, err := binx.ReadFormat(f, name, layoutOptions(r.overrides, name))
	if err != nil {
		return nil, &SchemaError{Format: name, Resource: path, Err: err}
	}
	return format, nil
}

// DataFormatFromHeader reads a product header document and returns the
// format named by its namespace-qualified Datablock_Schema element.
func (r *Registry) DataFormatFromHeader(header io.Reader) (*binx.DataFormat, error) {
	name, err := SchemaName(header)
	if err != nil {
		return nil, err
	}
	format, err := r.DataFormat(name)
	if err != nil {
		return nil, err
	}
	if format == nil {
		return nil, fmt.Errorf("dddb: no data format for schema %s", name)
	}
	return format, nil
}

// SchemaName returns the format name given in the Datablock_Schema
// element of a header document. The element must be in the namespace of
// the document's root element.
func SchemaName(header io.Reader) (string, error) {
	d := xml.NewDecoder(header)
	var ns string
	root := true
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("dddb: reading header: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root {
			root = false
			ns = se.Name.Space
			if ns == "" {
				return "", fmt.Errorf("dddb: header root element %s has no namespace", se.Name.Local)
			}
			continue
		}
		if se.Name.Local != "Datablock_Schema" || se.Name.Space != ns {
			continue
		}
		var text string
		if err := d.DecodeElement(&text, &se); err != nil {
			return "", fmt.Errorf("dddb: reading Datablock_Schema: %w", err)
		}
		text = strings.TrimSpace(text)
		if len(text) < FormatNameLength {
			return "", fmt.Errorf("dddb: invalid Datablock_Schema %q", text)
		}
		return text[:FormatNameLength], nil
	}
	return "", fmt.Errorf("dddb: header has no Datablock_Schema element")
}
