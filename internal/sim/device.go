// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

const deviceTypePrefix = "com.apple.CoreSimulator.SimDeviceType"

type DeviceState string

const (
	StateBooted       DeviceState = "Booted"
	StateBooting      DeviceState = "Booting"
	StateShutdown     DeviceState = "Shutdown"
	StateShuttingDown DeviceState = "Shutting Down"
)

type Device struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	RuntimeVersion string      `json:"runtime_version"`
	State          DeviceState `json:"state"`
	FullID         string      `json:"full_id"`
	DataPath       string      `json:"data_path,omitempty"`
	DataPathSize   int64       `json:"data_path_size,omitempty"`
	LogPath        string      `json:"log_path,omitempty"`
}

func (d Device) Booted() bool { return d.State == StateBooted }

type SDK struct {
	DisplayName string `json:"display_name"`
	Version     string `json:"version"`
}

type Application struct {
	AppIdentifier string `json:"app_identifier"`
	Path          string `json:"path"`
}

// Options carries device selection criteria and launch switches for a single call.
type Options struct {
	Device          string // device id or name
	SDKVersion      string // runtime version, e.g. "12.1"
	SkipInstall     bool
	WaitForDebugger bool
	Args            []string
}

// DeviceHint overrides Options during resolution when its fields are set.
type DeviceHint struct {
	ID         string
	SDKVersion string
}

var (
	ErrDeviceNotFound    = fmt.Errorf("device not found: %w", errdefs.ErrNotFound)
	ErrNoDeviceAvailable = fmt.Errorf("no simulator devices available: %w", errdefs.ErrUnavailable)
	ErrUnsupported       = fmt.Errorf("operation not supported by this simulator: %w", errdefs.ErrNotImplemented)
)

func deviceNotFound(identifier string) error {
	return fmt.Errorf("%w: no simulator image available for device identifier '%s'", ErrDeviceNotFound, identifier)
}

// IsDeviceNotFound reports whether err is a missing-device failure.
func IsDeviceNotFound(err error) bool {
	return errors.Is(err, ErrDeviceNotFound) || errdefs.IsNotFound(err)
}
