// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

/*
Package simmanager provides a Go library for driving iOS simulators through
the Xcode command line tools (xcrun simctl, xcodebuild, open).

# Overview

A Manager finds a simulator matching a device name or UDID and an iOS
runtime version, boots it if needed, and then installs, launches, stops and
inspects applications on it. Device and host state are read from simctl and
the process table on every call, so several tools may share the same
simulators.

# Quick Start

	import "github.com/forkbombeu/iossimctl/pkg/simmanager"

	func main() {
		mgr, err := simmanager.New()
		if err != nil {
			log.Fatal(err)
		}

		// Boot, install and launch in one call
		out, err := mgr.Run("/tmp/MyApp.app", "com.example.myapp", simmanager.Options{
			Device:     "iPhone 15",
			SDKVersion: "17.2",
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("launched:", out)

		// Stop it again (best effort)
		mgr.StopApplication(deviceID, "com.example.myapp", "MyApp")
	}

# Device Selection

Options.Device matches a UDID or a device name, Options.SDKVersion matches
the runtime version. With both empty an already booted device is preferred.
When nothing matches, the device named by IOSSIMCTL_DEFAULT_DEVICE is used,
and failing that the device with the newest runtime.

# Legacy Xcode

With Xcode 5 a fixed table of device identifiers is used instead of simctl.
Only validation and listing work there; other operations return
ErrUnsupported.

# Environment Variables

The manager reads IOSSIMCTL_* variables, optionally from a .env file named by
IOSSIMCTL_DOTENV:

  - IOSSIMCTL_XCRUN, IOSSIMCTL_XCODEBUILD, IOSSIMCTL_OPEN, IOSSIMCTL_TAIL, IOSSIMCTL_PLUTIL: tool binaries
  - IOSSIMCTL_SIMULATOR_APP: application opened to host simulators (default "Simulator")
  - IOSSIMCTL_DEFAULT_DEVICE: fallback device name (default "iPhone 6")
  - IOSSIMCTL_LOGS_DIR, IOSSIMCTL_DEVICES_DIR: CoreSimulator directories
  - IOSSIMCTL_BOOT_SETTLE, IOSSIMCTL_LAUNCH_SETTLE, IOSSIMCTL_BOOT_TIMEOUT: delays
  - IOSSIMCTL_CORRELATION_ID: added to every log record and span

# Observability

Every operation logs JSON records to stdout and opens an OpenTelemetry span
carrying the correlation ID. Counters of operations and boot paths can be
written in Prometheus text format with Manager.WriteMetrics.
*/
package simmanager
