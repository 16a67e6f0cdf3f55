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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms of batch
// conversions.
type Metrics struct {
	ProductsExported  prometheus.Counter
	ProductsSkipped   prometheus.Counter
	ProductsFailed    prometheus.Counter
	GridPointsWritten prometheus.Counter
	ExportDuration    prometheus.Histogram
}

// NewMetrics creates the conversion metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProductsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smos",
			Name:      "products_exported_total",
			Help:      "Total products converted to NetCDF.",
		}),
		ProductsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smos",
			Name:      "products_skipped_total",
			Help:      "Total products skipped because the target exists or the region is empty.",
		}),
		ProductsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smos",
			Name:      "products_failed_total",
			Help:      "Total products that could not be converted.",
		}),
		GridPointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smos",
			Name:      "grid_points_written_total",
			Help:      "Total grid points written to NetCDF files.",
		}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smos",
			Name:      "export_duration_seconds",
			Help:      "Duration of the conversion of one product.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	reg.MustRegister(
		m.ProductsExported,
		m.ProductsSkipped,
		m.ProductsFailed,
		m.GridPointsWritten,
		m.ExportDuration,
	)
	return m
}

func (m *Metrics) exported(gridPoints int, d time.Duration) {
	if m == nil {
		return
	}
	m.ProductsExported.Inc()
	m.GridPointsWritten.Add(float64(gridPoints))
	m.ExportDuration.Observe(d.Seconds())
}

func (m *Metrics) skipped() {
	if m != nil {
		m.ProductsSkipped.Inc()
	}
}

func (m *Metrics) failed() {
	if m != nil {
		m.ProductsFailed.Inc()
	}
}
