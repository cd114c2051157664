// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"errors"

	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
)

// Host controls the Simulator.app host process and other local processes.
type Host interface {
	// Running reports whether the simulator host process is alive.
	Running() bool
	// Start launches (or focuses) the host with deviceID as its current device.
	Start(deviceID string) error
	// KillByName sends SIGKILL to every process whose executable is name.
	KillByName(name string) (int, error)
}

type localHost struct {
	env    Env
	runner Runner
}

func NewHost(env Env, runner Runner) Host {
	return &localHost{env: env, runner: runner}
}

func (h *localHost) Running() bool {
	procs, err := h.processesNamed(h.env.HostProcess)
	return err == nil && len(procs) > 0
}

func (h *localHost) Start(deviceID string) error {
	_, span := startSpan(h.env, "host.Start", attribute.String("device_id", deviceID))
	defer span.End()
	_, err := h.runner.Output(h.env.Open, "-a", h.env.SimulatorApp, "--args", "-CurrentDeviceUDID", deviceID)
	recordSpanError(span, err)
	return err
}

func (h *localHost) KillByName(name string) (int, error) {
	procs, err := h.processesNamed(name)
	if err != nil {
		return 0, err
	}
	var errs []error
	killed := 0
	for _, p := range procs {
		if err := p.KillWithContext(h.env.context()); err != nil {
			errs = append(errs, err)
			continue
		}
		killed++
	}
	logEvent(h.env, "processes killed", "name", name, "count", killed)
	return killed, errors.Join(errs...)
}

func (h *localHost) processesNamed(name string) ([]*process.Process, error) {
	ctx := h.env.context()
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var out []*process.Process
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if n == name {
			out = append(out, p)
		}
	}
	return out, nil
}
