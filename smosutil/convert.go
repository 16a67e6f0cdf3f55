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

package smosutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/bcdev/smos-box-sub001/dddb"
	"github.com/bcdev/smos-box-sub001/ee2netcdf"
	"github.com/bcdev/smos-box-sub001/product"
)

// TargetExt is the extension of the files written by Convert.
const TargetExt = ".nc"

// Converter converts batches of products to NetCDF files.
type Converter struct {
	Registry  *dddb.Registry
	TargetDir string
	// Overwrite selects whether existing target files are replaced.
	// Products with an existing target are skipped otherwise.
	Overwrite bool
	// Workers is the number of products converted concurrently. Values
	// below 1 mean 1.
	Workers int
	Export  ee2netcdf.Config
	// Metrics is updated after each product if it is not nil.
	Metrics *Metrics
	Log     logrus.FieldLogger
}

// Report holds the outcome of a batch conversion.
type Report struct {
	// Exported holds the paths of the files written.
	Exported []string
	// Skipped holds the source products not converted because their
	// target exists or they do not intersect the region.
	Skipped []string
	// Failed maps the source products that could not be converted to the
	// cause.
	Failed map[string]error
}

// Sources expands the wildcards in patterns and returns each product
// once, by its header path. Patterns without a match are kept so that
// they are reported as failures.
func Sources(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("smos: source pattern %q: %v", p, err)
		}
		if len(matches) == 0 {
			matches = []string{p}
		}
		for _, m := range matches {
			if !isProductFile(m) {
				continue
			}
			key := productKey(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	return out, nil
}

// isProductFile reports whether path names a product header, data block
// or directory rather than some other file matched by a pattern.
func isProductFile(path string) bool {
	switch strings.ToUpper(filepath.Ext(path)) {
	case product.HeaderExt, product.DataExt:
		return true
	}
	fi, err := os.Stat(path)
	return err != nil || fi.IsDir()
}

// productKey identifies a product independent of the file naming it.
func productKey(path string) string {
	if hdr, _, err := product.Paths(path); err == nil {
		return hdr
	}
	return path
}

// TargetPath returns the path of the NetCDF file product src is
// converted to.
func (c *Converter) TargetPath(src string) string {
	name := productKey(src)
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return filepath.Join(c.TargetDir, name+TargetExt)
}

func (c *Converter) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

func (c *Converter) clock() clockwork.Clock {
	if c.Export.Clock == nil {
		return clockwork.NewRealClock()
	}
	return c.Export.Clock
}

// Convert converts the products matching the patterns in sources. A
// product that cannot be converted is logged and reported; the others
// are converted regardless. An error is returned only if the batch could
// not be started.
func (c *Converter) Convert(ctx context.Context, sources []string) (*Report, error) {
	files, err := Sources(sources)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.TargetDir, 0755); err != nil {
		return nil, fmt.Errorf("smos: creating target directory: %v", err)
	}
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	report := &Report{Failed: make(map[string]error)}
	var mu sync.Mutex
	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for src := range jobs {
				target, skipped, err := c.convert(ctx, src)
				mu.Lock()
				switch {
				case err != nil:
					report.Failed[src] = err
				case skipped:
					report.Skipped = append(report.Skipped, src)
				default:
					report.Exported = append(report.Exported, target)
				}
				mu.Unlock()
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	return report, nil
}

// convert converts one product and reports whether it was skipped.
func (c *Converter) convert(ctx context.Context, src string) (target string, skipped bool, err error) {
	target = c.TargetPath(src)
	log := c.log().WithFields(logrus.Fields{
		"source": src,
		"target": target,
	})
	if !c.Overwrite {
		if _, err := os.Stat(target); err == nil {
			log.Warn("smos: target exists, skipping product")
			c.Metrics.skipped()
			return target, true, nil
		}
	}
	start := c.clock().Now()
	p, err := product.Open(c.Registry, src)
	if err != nil {
		log.WithError(err).Error("smos: conversion failed")
		c.Metrics.failed()
		return target, false, err
	}
	defer p.Close()
	cfg := c.Export
	cfg.Log = c.log()
	res, err := ee2netcdf.Export(ctx, p, target, cfg)
	switch {
	case errors.Is(err, ee2netcdf.ErrEmptyRegion):
		log.Info("smos: product does not intersect the region, skipping")
		c.Metrics.skipped()
		return target, true, nil
	case err != nil:
		log.WithError(err).Error("smos: conversion failed")
		c.Metrics.failed()
		return target, false, err
	}
	c.Metrics.exported(res.GridPoints, c.clock().Since(start))
	return target, false, nil
}
