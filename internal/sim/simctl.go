// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/attribute"
)

// Service is the device-control surface of `xcrun simctl`.
type Service interface {
	Devices() ([]Device, error)
	Boot(deviceID string) error
	Install(deviceID, appPath string) error
	Uninstall(deviceID, appID string, skipError bool) error
	Launch(deviceID, appID string, opts Options) (string, error)
	Terminate(deviceID, appID string) (string, error)
	NotifyPost(deviceID, notification string) error
	AppContainer(deviceID, appID string) (string, error)
	Log(deviceID, predicate string) (Process, error)
}

const runtimePrefix = "com.apple.CoreSimulator.SimRuntime."

type Simctl struct {
	env    Env
	runner Runner
}

func NewSimctl(env Env, runner Runner) *Simctl {
	return &Simctl{env: env, runner: runner}
}

func (s *Simctl) simctl(args ...string) ([]byte, error) {
	return s.runner.Output(s.env.Xcrun, append([]string{"simctl"}, args...)...)
}

type simctlDevice struct {
	UDID                 string `json:"udid"`
	Name                 string `json:"name"`
	State                string `json:"state"`
	IsAvailable          *bool  `json:"isAvailable"`
	Availability         string `json:"availability"`
	DeviceTypeIdentifier string `json:"deviceTypeIdentifier"`
	DataPath             string `json:"dataPath"`
	DataPathSize         int64  `json:"dataPathSize"`
	LogPath              string `json:"logPath"`
}

type simctlDeviceList struct {
	Devices map[string][]simctlDevice `json:"devices"`
}

func (s *Simctl) Devices() ([]Device, error) {
	_, span := startSpan(s.env, "simctl.Devices")
	defer span.End()
	out, err := s.simctl("list", "devices", "--json")
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	devices, err := parseDeviceList(out)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("devices", len(devices)))
	return devices, nil
}

func parseDeviceList(out []byte) ([]Device, error) {
	var list simctlDeviceList
	if err := sonic.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("decode simctl device list: %w", err)
	}
	runtimes := make([]string, 0, len(list.Devices))
	for key := range list.Devices {
		runtimes = append(runtimes, key)
	}
	sort.Strings(runtimes)

	var devices []Device
	for _, runtime := range runtimes {
		version, ok := runtimeVersion(runtime)
		if !ok {
			continue
		}
		for _, d := range list.Devices[runtime] {
			if !d.available() {
				continue
			}
			fullID := d.DeviceTypeIdentifier
			if fullID == "" {
				fullID = deviceTypePrefix + "." + strings.ReplaceAll(d.Name, " ", "-")
			}
			devices = append(devices, Device{
				ID:             d.UDID,
				Name:           d.Name,
				RuntimeVersion: version,
				State:          DeviceState(d.State),
				FullID:         fullID,
				DataPath:       d.DataPath,
				DataPathSize:   d.DataPathSize,
				LogPath:        d.LogPath,
			})
		}
	}
	return devices, nil
}

func (d simctlDevice) available() bool {
	if d.IsAvailable != nil {
		return *d.IsAvailable
	}
	if d.Availability != "" {
		return d.Availability == "(available)"
	}
	return true
}

// runtimeVersion extracts "12.1" from "com.apple.CoreSimulator.SimRuntime.iOS-12-1"
// or the pre-Xcode 10.1 key form "iOS 12.1". Other platforms are rejected.
func runtimeVersion(key string) (string, bool) {
	key = strings.TrimPrefix(key, runtimePrefix)
	switch {
	case strings.HasPrefix(key, "iOS-"):
		return strings.ReplaceAll(strings.TrimPrefix(key, "iOS-"), "-", "."), true
	case strings.HasPrefix(key, "iOS "):
		return strings.TrimSpace(strings.TrimPrefix(key, "iOS ")), true
	}
	return "", false
}

func (s *Simctl) Boot(deviceID string) error {
	_, span := startSpan(s.env, "simctl.Boot", attribute.String("device_id", deviceID))
	defer span.End()
	_, err := s.simctl("boot", deviceID)
	if err != nil && strings.Contains(err.Error(), "current state: Booted") {
		logEvent(s.env, "device already booted", "device_id", deviceID)
		return nil
	}
	recordSpanError(span, err)
	return err
}

func (s *Simctl) Install(deviceID, appPath string) error {
	_, span := startSpan(s.env, "simctl.Install",
		attribute.String("device_id", deviceID),
		attribute.String("app_path", appPath),
	)
	defer span.End()
	_, err := s.simctl("install", deviceID, appPath)
	recordSpanError(span, err)
	return err
}

func (s *Simctl) Uninstall(deviceID, appID string, skipError bool) error {
	_, span := startSpan(s.env, "simctl.Uninstall",
		attribute.String("device_id", deviceID),
		attribute.String("app_id", appID),
	)
	defer span.End()
	_, err := s.simctl("uninstall", deviceID, appID)
	if err != nil && skipError {
		logEvent(s.env, "uninstall failed, ignoring", "device_id", deviceID, "app_id", appID, "error", err)
		return nil
	}
	recordSpanError(span, err)
	return err
}

func (s *Simctl) Launch(deviceID, appID string, opts Options) (string, error) {
	_, span := startSpan(s.env, "simctl.Launch",
		attribute.String("device_id", deviceID),
		attribute.String("app_id", appID),
	)
	defer span.End()
	args := []string{"launch"}
	if opts.WaitForDebugger {
		args = append(args, "--wait-for-debugger")
	}
	args = append(args, deviceID, appID)
	args = append(args, opts.Args...)
	out, err := s.simctl(args...)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}
	result := parseLaunchOutput(string(out), appID)
	span.SetAttributes(attribute.String("launch_result", result))
	return result, nil
}

// parseLaunchOutput turns "com.example.app: 4242" into "4242"; anything
// else is returned trimmed.
func parseLaunchOutput(out, appID string) string {
	out = strings.TrimSpace(out)
	if rest, ok := strings.CutPrefix(out, appID+":"); ok {
		return strings.TrimSpace(rest)
	}
	return out
}

func (s *Simctl) Terminate(deviceID, appID string) (string, error) {
	_, span := startSpan(s.env, "simctl.Terminate",
		attribute.String("device_id", deviceID),
		attribute.String("app_id", appID),
	)
	defer span.End()
	out, err := s.simctl("terminate", deviceID, appID)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *Simctl) NotifyPost(deviceID, notification string) error {
	_, span := startSpan(s.env, "simctl.NotifyPost",
		attribute.String("device_id", deviceID),
		attribute.String("notification", notification),
	)
	defer span.End()
	_, err := s.simctl("notify_post", deviceID, notification)
	recordSpanError(span, err)
	return err
}

func (s *Simctl) AppContainer(deviceID, appID string) (string, error) {
	_, span := startSpan(s.env, "simctl.AppContainer",
		attribute.String("device_id", deviceID),
		attribute.String("app_id", appID),
	)
	defer span.End()
	out, err := s.simctl("get_app_container", deviceID, appID)
	if err != nil {
		recordSpanError(span, err)
		return "", err
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		err := errors.New("simctl returned an empty app container path")
		recordSpanError(span, err)
		return "", err
	}
	return path, nil
}

func (s *Simctl) Log(deviceID, predicate string) (Process, error) {
	_, span := startSpan(s.env, "simctl.Log", attribute.String("device_id", deviceID))
	defer span.End()
	args := []string{"simctl", "spawn", deviceID, "log", "stream", "--style", "syslog"}
	if predicate != "" {
		args = append(args, "--predicate", predicate)
	}
	proc, err := s.runner.Start(s.env.Xcrun, args...)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("pid", proc.Pid()))
	return proc, nil
}
