// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// Xcode releases before 8 have no `simctl terminate`.
	minXcodeForTerminate = 8
	// Runtimes from iOS 11 on expose the unified log through `log stream`.
	minRuntimeForLogStream = 11
)

func (s *SimctlSimulator) SendNotification(notification, deviceID string) error {
	_, ok, err := s.deviceByID(deviceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: could not find device '%s'", ErrDeviceNotFound, deviceID)
	}
	err = s.simctl.NotifyPost(deviceID, notification)
	observe("send_notification", err)
	return err
}

func (s *SimctlSimulator) ApplicationPath(deviceID, appID string) (string, error) {
	return s.simctl.AppContainer(deviceID, appID)
}

func (s *SimctlSimulator) InstallApplication(deviceID, appPath string) error {
	err := s.simctl.Install(deviceID, appPath)
	observe("install", err)
	return err
}

// UninstallApplication treats a missing application as success.
func (s *SimctlSimulator) UninstallApplication(deviceID, appID string) error {
	err := s.simctl.Uninstall(deviceID, appID, true)
	observe("uninstall", err)
	return err
}

// StartApplication launches the app and then waits LaunchSettle: simctl
// returns before the app's related services are up.
func (s *SimctlSimulator) StartApplication(deviceID, appID string, opts Options) (string, error) {
	result, err := s.simctl.Launch(deviceID, appID, opts)
	observe("start_application", err)
	if err != nil {
		return "", err
	}
	s.sleep(s.env.LaunchSettle)
	return result, nil
}

// StopApplication is best-effort: it never returns an error, and an empty
// result means the termination could not be confirmed.
func (s *SimctlSimulator) StopApplication(deviceID, appID, executable string) string {
	_, span := startSpan(s.env, "sim.StopApplication",
		attribute.String("device_id", deviceID),
		attribute.String("app_id", appID),
	)
	defer span.End()

	result, err := s.stopApplication(deviceID, appID, executable)
	observe("stop_application", err)
	if err != nil {
		recordSpanError(span, err)
		logEvent(s.env, "stop application failed",
			"device_id", deviceID,
			"app_id", appID,
			"executable", executable,
			"error", err,
		)
		return ""
	}
	return result
}

func (s *SimctlSimulator) stopApplication(deviceID, appID, executable string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = "", fmt.Errorf("stop application panicked: %v", r)
		}
	}()

	// An unknown version falls through to terminate.
	xcodeMajor, probeErr := s.xcode.XcodeMajor()
	if probeErr != nil {
		xcodeMajor = 0
	}

	if xcodeMajor > 0 && xcodeMajor < minXcodeForTerminate {
		if executable == "" {
			return "", errors.New("no executable name to kill")
		}
		killed, err := s.host.KillByName(executable)
		if err != nil {
			return "", err
		}
		result = fmt.Sprintf("killed %d %s process(es)", killed, executable)
	} else {
		if result, err = s.simctl.Terminate(deviceID, appID); err != nil {
			return "", err
		}
	}

	// Neither kill nor terminate waits for the processes to exit.
	s.sleep(s.env.LaunchSettle)
	return result, nil
}

// DeviceLogProcess starts the system log stream for deviceID on first use
// and returns the same process on every later call.
func (s *SimctlSimulator) DeviceLogProcess(deviceID, predicate string) (Process, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.logStarted {
		return s.logProc, nil
	}

	_, span := startSpan(s.env, "sim.DeviceLogProcess", attribute.String("device_id", deviceID))
	defer span.End()

	device, _, err := s.deviceByID(deviceID)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	var proc Process
	if majorVersion(device.RuntimeVersion) >= minRuntimeForLogStream {
		proc, err = s.simctl.Log(deviceID, predicate)
	} else {
		logFile := filepath.Join(s.env.LogsDir, deviceID, "system.log")
		proc, err = s.runner.Start(s.env.Tail, "-f", "-n", "1", logFile)
	}
	observe("device_log", err)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	logEvent(s.env, "device log started", "device_id", deviceID, "runtime", device.RuntimeVersion, "pid", proc.Pid())

	s.logProc = proc
	s.logStarted = true
	return proc, nil
}
