// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"fmt"
	"sort"
	"strings"
)

const legacyDefaultIdentifier = "iPhone"

var legacyDeviceIdentifiers = map[string]string{
	"iPhone":                      "iPhone",
	"iPhone-Retina-3.5-inch":      "iPhone Retina (3.5-inch)",
	"iPhone-Retina-4-inch":        "iPhone Retina (4-inch)",
	"iPhone-Retina-4-inch-64-bit": "iPhone Retina (4-inch 64-bit)",
	"iPad":                        "iPad",
	"iPad-Retina":                 "iPad Retina",
	"iPad-Retina-64-bit":          "iPad Retina (64-bit)",
}

// LegacySimulator is the Xcode 5 simulator. It only knows a fixed table of
// device identifiers and cannot drive applications.
type LegacySimulator struct {
	env Env
}

func NewLegacySimulator(env Env) *LegacySimulator { return &LegacySimulator{env: env} }

func legacyIdentifiers() []string {
	ids := make([]string, 0, len(legacyDeviceIdentifiers))
	for id := range legacyDeviceIdentifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *LegacySimulator) ValidateDeviceIdentifier(identifier string) error {
	if identifier == "" {
		return nil
	}
	if _, ok := legacyDeviceIdentifiers[identifier]; ok {
		return nil
	}
	return fmt.Errorf("%w: invalid device identifier %s. Valid device identifiers are %s",
		ErrDeviceNotFound, identifier, strings.Join(legacyIdentifiers(), ", "))
}

// DeviceName maps an identifier to the name the legacy simulator expects.
func (l *LegacySimulator) DeviceName(identifier string) string {
	if identifier == "" {
		identifier = legacyDefaultIdentifier
	}
	return legacyDeviceIdentifiers[identifier]
}

func (l *LegacySimulator) Devices() ([]Device, error) {
	ids := legacyIdentifiers()
	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		devices = append(devices, Device{
			ID:     id,
			Name:   legacyDeviceIdentifiers[id],
			State:  StateShutdown,
			FullID: deviceTypePrefix + "." + id,
		})
	}
	return devices, nil
}

func (l *LegacySimulator) SDKs() ([]SDK, error) { return nil, nil }

func (l *LegacySimulator) Run(appPath, appID string, opts Options) (string, error) {
	return "", ErrUnsupported
}

func (l *LegacySimulator) SendNotification(notification, deviceID string) error {
	return ErrUnsupported
}

func (l *LegacySimulator) ApplicationPath(deviceID, appID string) (string, error) {
	return "", ErrUnsupported
}

func (l *LegacySimulator) InstalledApplications(deviceID string) ([]Application, error) {
	return nil, ErrUnsupported
}

func (l *LegacySimulator) InstallApplication(deviceID, appPath string) error {
	return ErrUnsupported
}

func (l *LegacySimulator) UninstallApplication(deviceID, appID string) error {
	return ErrUnsupported
}

func (l *LegacySimulator) StartApplication(deviceID, appID string, opts Options) (string, error) {
	return "", ErrUnsupported
}

func (l *LegacySimulator) StopApplication(deviceID, appID, executable string) string {
	logEvent(l.env, "stop application unsupported on legacy simulator", "device_id", deviceID, "app_id", appID)
	return ""
}

func (l *LegacySimulator) DeviceLogProcess(deviceID, predicate string) (Process, error) {
	return nil, ErrUnsupported
}

func (l *LegacySimulator) StartSimulator(opts Options, device *Device) error {
	return ErrUnsupported
}

var (
	_ Simulator = (*SimctlSimulator)(nil)
	_ Simulator = (*LegacySimulator)(nil)
)
