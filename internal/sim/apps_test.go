// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstalledApplicationsScansBundles(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.sim.env.DevicesDir = t.TempDir()

	appsDir := filepath.Join(rig.sim.env.DevicesDir, "B", "data", "Containers", "Bundle", "Application")
	bundles := map[string]string{
		"1111/One.app":      `{"CFBundleIdentifier":"com.example.one","CFBundleName":"One"}`,
		"2222/Two.app":      `{"CFBundleIdentifier":"com.example.two"}`,
		"3333/Broken.app":   "",
		"4444/Nameless.app": `{"CFBundleName":"Nameless"}`,
	}
	for rel, plist := range bundles {
		dir := filepath.Join(appsDir, rel)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		call := "plutil -convert json -o - " + filepath.Join(dir, "Info.plist")
		if plist == "" {
			rig.runner.errs[call] = errBoom
			continue
		}
		rig.runner.outputs[call] = []byte(plist)
	}

	apps, err := rig.sim.InstalledApplications("B")
	require.NoError(t, err)
	assert.Equal(t, []Application{
		{AppIdentifier: "com.example.one", Path: filepath.Join(appsDir, "1111", "One.app")},
		{AppIdentifier: "com.example.two", Path: filepath.Join(appsDir, "2222", "Two.app")},
	}, apps)
}

func TestInstalledApplicationsPrefersDeviceDataPath(t *testing.T) {
	dataPath := t.TempDir()
	devices := sampleDevices()
	devices[0].DataPath = dataPath
	rig := newTestRig(devices, fakeProbe{major: 15})

	dir := filepath.Join(dataPath, "Containers", "Bundle", "Application", "abcd", "App.app")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	rig.runner.outputs["plutil -convert json -o - "+filepath.Join(dir, "Info.plist")] = []byte(`{"CFBundleIdentifier":"com.example.app"}`)

	apps, err := rig.sim.InstalledApplications("B")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "com.example.app", apps[0].AppIdentifier)
}

func TestInstalledApplicationsEmptyDevice(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.sim.env.DevicesDir = t.TempDir()

	apps, err := rig.sim.InstalledApplications("A")
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestInstalledApplicationsRootWithGlobMetacharacters(t *testing.T) {
	rig := newTestRig(sampleDevices(), fakeProbe{major: 15})
	rig.sim.env.DevicesDir = filepath.Join(t.TempDir(), "Sims [dev]*")

	dir := filepath.Join(rig.sim.env.DevicesDir, "B", "data", "Containers", "Bundle", "Application", "1111", "One.app")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	rig.runner.outputs["plutil -convert json -o - "+filepath.Join(dir, "Info.plist")] = []byte(`{"CFBundleIdentifier":"com.example.one"}`)

	apps, err := rig.sim.InstalledApplications("B")
	require.NoError(t, err)
	assert.Equal(t, []Application{{AppIdentifier: "com.example.one", Path: dir}}, apps)
}
