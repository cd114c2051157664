// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Simulator is implemented by the simctl-based simulator and by the legacy
// Xcode 5 simulator. One of them is chosen at startup.
type Simulator interface {
	ValidateDeviceIdentifier(identifier string) error
	Devices() ([]Device, error)
	SDKs() ([]SDK, error)
	Run(appPath, appID string, opts Options) (string, error)
	SendNotification(notification, deviceID string) error
	ApplicationPath(deviceID, appID string) (string, error)
	InstalledApplications(deviceID string) ([]Application, error)
	InstallApplication(deviceID, appPath string) error
	UninstallApplication(deviceID, appID string) error
	StartApplication(deviceID, appID string, opts Options) (string, error)
	StopApplication(deviceID, appID, executable string) string
	DeviceLogProcess(deviceID, predicate string) (Process, error)
	StartSimulator(opts Options, device *Device) error
}

// SimctlSimulator drives simulators through `xcrun simctl`.
type SimctlSimulator struct {
	env    Env
	simctl Service
	host   Host
	xcode  VersionProbe
	runner Runner
	sleep  func(time.Duration)

	logMu      sync.Mutex
	logStarted bool
	logProc    Process
}

func NewSimctlSimulator(env Env, simctl Service, host Host, xcode VersionProbe, runner Runner) *SimctlSimulator {
	return &SimctlSimulator{
		env:    env,
		simctl: simctl,
		host:   host,
		xcode:  xcode,
		runner: runner,
		sleep:  time.Sleep,
	}
}

// NewDefaultSimctlSimulator wires the simulator to the local toolchain.
func NewDefaultSimctlSimulator(env Env) *SimctlSimulator {
	runner := NewRunner(env)
	return NewSimctlSimulator(env, NewSimctl(env, runner), NewHost(env, runner), NewVersionProbe(env, runner), runner)
}

// ValidateDeviceIdentifier accepts any identifier known to simctl; an empty
// identifier selects the default device.
func (s *SimctlSimulator) ValidateDeviceIdentifier(identifier string) error {
	if identifier == "" {
		return nil
	}
	devices, err := s.simctl.Devices()
	if err != nil {
		return err
	}
	return VerifyDevice(devices, identifier)
}

func (s *SimctlSimulator) Devices() ([]Device, error) {
	devices, err := s.simctl.Devices()
	observe("devices", err)
	return devices, err
}

func (s *SimctlSimulator) SDKs() ([]SDK, error) {
	devices, err := s.simctl.Devices()
	if err != nil {
		return nil, err
	}
	sdks := make([]SDK, 0, len(devices))
	for _, d := range devices {
		sdks = append(sdks, SDK{DisplayName: "iOS " + d.RuntimeVersion, Version: d.RuntimeVersion})
	}
	return sdks, nil
}

func (s *SimctlSimulator) resolve(opts Options, hint *DeviceHint) (Device, error) {
	devices, err := s.simctl.Devices()
	if err != nil {
		return Device{}, err
	}
	return Resolve(devices, opts, hint, s.env.DefaultDevice)
}

func (s *SimctlSimulator) verify(identifier string) error {
	devices, err := s.simctl.Devices()
	if err != nil {
		return err
	}
	return VerifyDevice(devices, identifier)
}

func (s *SimctlSimulator) deviceByID(deviceID string) (Device, bool, error) {
	devices, err := s.simctl.Devices()
	if err != nil {
		return Device{}, false, err
	}
	d, ok := findByID(devices, deviceID)
	return d, ok, nil
}

// ResolveDevice exposes the resolution chain for callers that only need the target.
func (s *SimctlSimulator) ResolveDevice(opts Options) (Device, error) {
	_, span := startSpan(s.env, "sim.ResolveDevice",
		attribute.String("device", opts.Device),
		attribute.String("sdk_version", opts.SDKVersion),
	)
	defer span.End()
	d, err := s.resolve(opts, nil)
	if err != nil {
		recordSpanError(span, err)
		return Device{}, err
	}
	span.SetAttributes(attribute.String("device_id", d.ID))
	return d, nil
}

// simctl ships with Xcode 6.
const minXcodeForSimctl = 6

// SelectSimulator picks the implementation matching the installed Xcode. An
// unknown version selects simctl.
func SelectSimulator(env Env, xcode VersionProbe, simctl func() Simulator) Simulator {
	major, err := xcode.XcodeMajor()
	if err == nil && major < minXcodeForSimctl {
		logEvent(env, "using legacy simulator", "xcode_major", major)
		return NewLegacySimulator(env)
	}
	if err != nil {
		logEvent(env, "xcode version unknown", "error", err)
	}
	return simctl()
}
