// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsRegistry = prometheus.NewRegistry()

	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iossimctl_operations_total",
		Help: "Simulator operations by outcome.",
	}, []string{"operation", "outcome"})

	bootPathsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iossimctl_boot_paths_total",
		Help: "Lifecycle decisions taken when a boot was requested.",
	}, []string{"path"})
)

func init() {
	metricsRegistry.MustRegister(operationsTotal, bootPathsTotal)
}

const (
	bootPathNoop      = "already_booted"
	bootPathBoot      = "simctl_boot"
	bootPathHostStart = "host_start"
)

func observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// WriteMetrics stores the counters in node-exporter textfile format.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, metricsRegistry)
}
