// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

type fakeService struct {
	devices []Device
	calls   []string

	devicesErr   error
	bootErr      error
	installErr   error
	launchResult string
	launchErr    error
	terminateErr error
	logErr       error
	logStarts    int
}

func (f *fakeService) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeService) Devices() ([]Device, error) {
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	out := make([]Device, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeService) setState(deviceID string, state DeviceState) {
	for i := range f.devices {
		if f.devices[i].ID == deviceID {
			f.devices[i].State = state
		}
	}
}

func (f *fakeService) Boot(deviceID string) error {
	f.record("boot " + deviceID)
	if f.bootErr != nil {
		return f.bootErr
	}
	f.setState(deviceID, StateBooted)
	return nil
}

func (f *fakeService) Install(deviceID, appPath string) error {
	f.record("install " + deviceID + " " + appPath)
	return f.installErr
}

func (f *fakeService) Uninstall(deviceID, appID string, skipError bool) error {
	f.record("uninstall " + deviceID + " " + appID)
	return nil
}

func (f *fakeService) Launch(deviceID, appID string, opts Options) (string, error) {
	f.record("launch " + deviceID + " " + appID)
	return f.launchResult, f.launchErr
}

func (f *fakeService) Terminate(deviceID, appID string) (string, error) {
	f.record("terminate " + deviceID + " " + appID)
	if f.terminateErr != nil {
		return "", f.terminateErr
	}
	return "terminated", nil
}

func (f *fakeService) NotifyPost(deviceID, notification string) error {
	f.record("notify " + deviceID + " " + notification)
	return nil
}

func (f *fakeService) AppContainer(deviceID, appID string) (string, error) {
	f.record("container " + deviceID + " " + appID)
	return "/containers/" + appID, nil
}

func (f *fakeService) Log(deviceID, predicate string) (Process, error) {
	f.record("log " + deviceID + " " + predicate)
	if f.logErr != nil {
		return nil, f.logErr
	}
	f.logStarts++
	return &fakeProcess{pid: 100 + f.logStarts}, nil
}

type fakeHost struct {
	service *fakeService
	running bool
	starts  []string
	killed  []string
	killErr error
}

func (h *fakeHost) Running() bool { return h.running }

func (h *fakeHost) Start(deviceID string) error {
	h.starts = append(h.starts, deviceID)
	h.running = true
	if h.service != nil {
		h.service.setState(deviceID, StateBooted)
	}
	return nil
}

func (h *fakeHost) KillByName(name string) (int, error) {
	h.killed = append(h.killed, name)
	if h.killErr != nil {
		return 0, h.killErr
	}
	return 1, nil
}

type fakeProbe struct {
	major int
	err   error
}

func (p fakeProbe) XcodeMajor() (int, error) { return p.major, p.err }

type fakeRunner struct {
	outputs map[string][]byte
	errs    map[string]error
	calls   []string
	started []string
}

func (r *fakeRunner) Output(name string, args ...string) ([]byte, error) {
	call := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.calls = append(r.calls, call)
	if err, ok := r.errs[call]; ok {
		return nil, err
	}
	return r.outputs[call], nil
}

func (r *fakeRunner) Start(name string, args ...string) (Process, error) {
	r.started = append(r.started, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return &fakeProcess{pid: 42}, nil
}

type fakeProcess struct {
	pid int
}

func (p *fakeProcess) Stdout() io.Reader { return strings.NewReader("") }
func (p *fakeProcess) Pid() int          { return p.pid }
func (p *fakeProcess) Wait() error       { return nil }
func (p *fakeProcess) Kill() error       { return nil }

var errBoom = errors.New("boom")

func testEnv() Env {
	return Env{
		Xcrun:         "xcrun",
		Tail:          "tail",
		Plutil:        "plutil",
		DefaultDevice: "iPhone 6",
		LogsDir:       "/logs",
		DevicesDir:    "/devices",
		BootSettle:    time.Second,
		LaunchSettle:  500 * time.Millisecond,
		Context:       context.Background(),
	}
}

type testRig struct {
	sim     *SimctlSimulator
	service *fakeService
	host    *fakeHost
	runner  *fakeRunner
	sleeps  []time.Duration
}

func newTestRig(devices []Device, probe fakeProbe) *testRig {
	service := &fakeService{devices: devices, launchResult: "4242"}
	rig := &testRig{
		service: service,
		host:    &fakeHost{service: service},
		runner:  &fakeRunner{outputs: map[string][]byte{}, errs: map[string]error{}},
	}
	rig.sim = NewSimctlSimulator(testEnv(), service, rig.host, probe, rig.runner)
	rig.sim.sleep = func(d time.Duration) { rig.sleeps = append(rig.sleeps, d) }
	return rig
}

func sampleDevices() []Device {
	return []Device{
		{ID: "B", Name: "iPhone X", RuntimeVersion: "12.1", State: StateShutdown, FullID: deviceTypePrefix + ".iPhone-X"},
		{ID: "A", Name: "iPhone 6", RuntimeVersion: "9.3", State: StateShutdown, FullID: deviceTypePrefix + ".iPhone-6"},
	}
}
