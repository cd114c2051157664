// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSimulatorAlreadyBootedIsNoop(t *testing.T) {
	devices := sampleDevices()
	devices[0].State = StateBooted
	rig := newTestRig(devices, fakeProbe{major: 15})

	for i := 0; i < 2; i++ {
		require.NoError(t, rig.sim.StartSimulator(Options{}, nil))
	}
	assert.Empty(t, rig.service.calls)
	assert.Empty(t, rig.host.starts)
	assert.Empty(t, rig.sleeps)
}

func TestStartSimulatorStartsHostWhenNotRunning(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})

	require.NoError(t, rig.sim.StartSimulator(Options{SDKVersion: "12.1"}, nil))
	assert.NotContains(t, rig.service.calls, "boot B")
	assert.Equal(t, []string{"B", "B"}, rig.host.starts)
	assert.Equal(t, []time.Duration{time.Second}, rig.sleeps)

	// Second call sees the booted device and does nothing.
	require.NoError(t, rig.sim.StartSimulator(Options{SDKVersion: "12.1"}, nil))
	assert.Len(t, rig.host.starts, 2)
}

func TestStartSimulatorHostRunningWithoutBootedDeviceReResolves(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.host.running = true
	// Supplied device carries no runtime, so it is re-resolved by id first.
	device := &Device{ID: "B"}

	require.NoError(t, rig.sim.StartSimulator(Options{}, device))
	// With no booted devices the default device wins the re-resolution.
	assert.Equal(t, []string{"boot A"}, rig.service.calls)
	assert.Equal(t, []string{"A"}, rig.host.starts)
}

func TestStartSimulatorHostRunningBootsResolvedDevice(t *testing.T) {
	devices := sampleDevices()
	devices = append(devices, Device{ID: "C", Name: "iPad", RuntimeVersion: "11.0", State: StateBooted, FullID: deviceTypePrefix + ".iPad"})
	rig := newTestRig(devices, fakeProbe{major: 15})
	rig.host.running = true

	require.NoError(t, rig.sim.StartSimulator(Options{Device: "iPhone X"}, nil))
	assert.Equal(t, []string{"boot B"}, rig.service.calls)
	assert.Equal(t, []string{"B"}, rig.host.starts)
}

func TestStartSimulatorUnknownDevice(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})

	err := rig.sim.StartSimulator(Options{Device: "Nokia 3310"}, nil)
	require.Error(t, err)
	assert.True(t, IsDeviceNotFound(err))
	assert.Empty(t, rig.host.starts)
}

func TestStartSimulatorVerifiesSuppliedDevice(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})

	err := rig.sim.StartSimulator(Options{}, &Device{ID: "ghost", RuntimeVersion: "12.1", FullID: "x"})
	assert.True(t, IsDeviceNotFound(err))
}

func TestStartSimulatorPlaceholderDeviceUsesDefault(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})

	require.NoError(t, rig.sim.StartSimulator(Options{}, &Device{}))
	assert.Equal(t, []string{"A", "A"}, rig.host.starts)
}

func TestStartSimulatorEmptyDirectory(t *testing.T) {
	rig := newTestRig(nil, fakeProbe{major: 15})

	err := rig.sim.StartSimulator(Options{}, nil)
	assert.ErrorIs(t, err, ErrNoDeviceAvailable)
}

func TestStartSimulatorPropagatesBootFailure(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.host.running = true
	rig.service.bootErr = errBoom

	err := rig.sim.StartSimulator(Options{Device: "B"}, nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, rig.host.starts)
}

func TestStartSimulatorWaitsForBootState(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.sim.env.BootTimeout = time.Second

	require.NoError(t, rig.sim.StartSimulator(Options{Device: "B"}, nil))
	devices, err := rig.service.Devices()
	require.NoError(t, err)
	d, ok := findByID(devices, "B")
	require.True(t, ok)
	assert.True(t, d.Booted())
}

func TestStartSimulatorBootTimeoutIsNotFatal(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.host.service = nil // host starts never flip the state
	rig.sim.env.BootTimeout = 300 * time.Millisecond

	require.NoError(t, rig.sim.StartSimulator(Options{Device: "B"}, nil))
	assert.Equal(t, []string{"B", "B"}, rig.host.starts)
}

func TestRunInstallsAndLaunches(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})

	result, err := rig.sim.Run("/tmp/App.app", "com.example.app", Options{SDKVersion: "12.1"})
	require.NoError(t, err)
	assert.Equal(t, "4242", result)
	assert.Equal(t, []string{
		"install B /tmp/App.app",
		"launch B com.example.app",
	}, rig.service.calls)
}

func TestRunSkipInstall(t *testing.T) {
	devices := sampleDevices()
	devices[1].State = StateBooted
	rig := newTestRig(devices, fakeProbe{major: 15})

	_, err := rig.sim.Run("/tmp/App.app", "com.example.app", Options{SkipInstall: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"launch A com.example.app"}, rig.service.calls)
}

func TestRunPropagatesInstallFailure(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.service.installErr = errBoom

	_, err := rig.sim.Run("/tmp/App.app", "com.example.app", Options{})
	assert.ErrorIs(t, err, errBoom)
	assert.NotContains(t, rig.service.calls, "launch A com.example.app")
}
