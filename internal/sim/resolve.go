// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import "sort"

// Resolve picks exactly one device from the snapshot. Matching runs over the
// devices sorted by runtime version; when nothing matches it falls back to the
// device named defaultName and then to the newest runtime. It only fails on an
// empty snapshot.
func Resolve(devices []Device, opts Options, hint *DeviceHint, defaultName string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrNoDeviceAvailable
	}
	sorted := make([]Device, len(devices))
	copy(sorted, devices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareVersions(sorted[i].RuntimeVersion, sorted[j].RuntimeVersion) < 0
	})

	sdkVersion, idOrName := opts.SDKVersion, opts.Device
	if hint != nil {
		if hint.SDKVersion != "" {
			sdkVersion = hint.SDKVersion
		}
		if hint.ID != "" {
			idOrName = hint.ID
		}
	}

	match := func(d Device) bool {
		identified := d.Name == idOrName || d.ID == idOrName
		switch {
		case sdkVersion != "" && idOrName == "":
			return d.RuntimeVersion == sdkVersion
		case idOrName != "" && sdkVersion == "":
			return identified
		case idOrName != "" && sdkVersion != "":
			return d.RuntimeVersion == sdkVersion && identified
		default:
			return d.Booted()
		}
	}

	for _, d := range sorted {
		if match(d) {
			return d, nil
		}
	}
	for _, d := range sorted {
		if d.Name == defaultName {
			return d, nil
		}
	}
	return sorted[len(sorted)-1], nil
}

// VerifyDevice fails with ErrDeviceNotFound unless identifier is the id or
// name of a device in the snapshot.
func VerifyDevice(devices []Device, identifier string) error {
	for _, d := range devices {
		if d.ID == identifier || d.Name == identifier {
			return nil
		}
	}
	return deviceNotFound(identifier)
}

func findByID(devices []Device, id string) (Device, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

func anyBooted(devices []Device) bool {
	for _, d := range devices {
		if d.Booted() {
			return true
		}
	}
	return false
}
