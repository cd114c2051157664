// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
)

const bootPollInterval = 250 * time.Millisecond

var errNotBootedYet = errors.New("device not booted yet")

// StartSimulator makes sure the requested device is booted. Calling it for a
// device that is already booted does nothing.
func (s *SimctlSimulator) StartSimulator(opts Options, device *Device) (err error) {
	_, span := startSpan(s.env, "sim.StartSimulator",
		attribute.String("device", opts.Device),
		attribute.String("sdk_version", opts.SDKVersion),
	)
	defer span.End()
	defer func() {
		recordSpanError(span, err)
		observe("start_simulator", err)
	}()

	if device == nil && opts.Device != "" {
		if err := s.verify(opts.Device); err != nil {
			return err
		}
	}

	var target Device
	if device != nil {
		target = *device
	} else {
		if target, err = s.resolve(opts, nil); err != nil {
			return err
		}
	}

	// A device without an id means "whatever resolves by default".
	if target.ID != "" {
		if err := s.verify(target.ID); err != nil {
			return err
		}
	}

	if target.RuntimeVersion == "" || target.FullID == "" {
		if target, err = s.resolve(opts, &DeviceHint{ID: target.ID}); err != nil {
			return err
		}
	}
	span.SetAttributes(attribute.String("device_id", target.ID))

	if target.Booted() {
		bootPathsTotal.WithLabelValues(bootPathNoop).Inc()
		return nil
	}

	hostRunning := s.host.Running()
	devices, err := s.simctl.Devices()
	if err != nil {
		return err
	}
	haveBooted := anyBooted(devices)
	logEvent(s.env, "simulator boot requested",
		"device_id", target.ID,
		"name", target.Name,
		"runtime", target.RuntimeVersion,
		"host_running", hostRunning,
		"have_booted", haveBooted,
	)

	if hostRunning {
		// The host window was closed while the app kept running.
		if !haveBooted {
			if target, err = s.resolve(opts, nil); err != nil {
				return err
			}
		} else if booted := bootedIDs(devices); !contains(booted, target.ID) {
			logEvent(s.env, "booting alongside another booted device",
				"device_id", target.ID,
				"booted", strings.Join(booted, ","),
			)
		}
		bootPathsTotal.WithLabelValues(bootPathBoot).Inc()
		if err := s.simctl.Boot(target.ID); err != nil {
			return err
		}
	} else {
		bootPathsTotal.WithLabelValues(bootPathHostStart).Inc()
		if err := s.host.Start(target.ID); err != nil {
			return err
		}
	}

	if err := s.host.Start(target.ID); err != nil {
		return err
	}
	s.waitForBoot(target.ID)
	// Host startup has no completion signal; give it time before installs.
	s.sleep(s.env.BootSettle)
	return nil
}

// waitForBoot polls the directory until the device reports Booted or
// BootTimeout elapses. A timeout is logged, not returned.
func (s *SimctlSimulator) waitForBoot(deviceID string) {
	if s.env.BootTimeout <= 0 {
		return
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = bootPollInterval
	policy.MaxInterval = 2 * s.env.BootSettle
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	policy.MaxElapsedTime = s.env.BootTimeout

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		d, ok, err := s.deviceByID(deviceID)
		if err != nil {
			return err
		}
		if !ok {
			return backoff.Permanent(deviceNotFound(deviceID))
		}
		if !d.Booted() {
			return errNotBootedYet
		}
		return nil
	}, backoff.WithContext(policy, s.env.context()))
	if err != nil {
		logEvent(s.env, "boot state not confirmed",
			"device_id", deviceID,
			"timeout", s.env.BootTimeout,
			"attempts", attempts,
			"error", err,
		)
		return
	}
	logEvent(s.env, "simulator booted", "device_id", deviceID, "attempts", attempts)
}

func bootedIDs(devices []Device) []string {
	var ids []string
	for _, d := range devices {
		if d.Booted() {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Run boots the resolved device, installs the bundle unless SkipInstall and
// launches it, returning the launch result.
func (s *SimctlSimulator) Run(appPath, appID string, opts Options) (result string, err error) {
	_, span := startSpan(s.env, "sim.Run",
		attribute.String("app_path", appPath),
		attribute.String("app_id", appID),
	)
	defer span.End()
	defer func() {
		recordSpanError(span, err)
		observe("run", err)
	}()

	device, err := s.resolve(opts, nil)
	if err != nil {
		return "", err
	}
	if err := s.StartSimulator(opts, &device); err != nil {
		return "", err
	}
	if !opts.SkipInstall {
		if err := s.simctl.Install(device.ID, appPath); err != nil {
			return "", err
		}
	}
	result, err = s.simctl.Launch(device.ID, appID, opts)
	if err != nil {
		return "", err
	}
	logEvent(s.env, "application launched", "device_id", device.ID, "app_id", appID, "result", result)
	return result, nil
}
