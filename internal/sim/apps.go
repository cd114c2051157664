// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/attribute"
)

const bundleGlob = "Containers/Bundle/Application/*/*.app"

type infoPlist struct {
	BundleIdentifier string `json:"CFBundleIdentifier"`
}

// InstalledApplications lists the user-installed bundles of a device by
// scanning its data directory.
func (s *SimctlSimulator) InstalledApplications(deviceID string) ([]Application, error) {
	_, span := startSpan(s.env, "sim.InstalledApplications", attribute.String("device_id", deviceID))
	defer span.End()

	root := filepath.Join(s.env.DevicesDir, deviceID, "data")
	if d, ok, err := s.deviceByID(deviceID); err == nil && ok && d.DataPath != "" {
		root = d.DataPath
	}
	// Matched relative to root so characters like '[' in the root stay literal.
	matches, err := doublestar.Glob(os.DirFS(root), bundleGlob)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	bundles := make([]string, 0, len(matches))
	for _, match := range matches {
		bundles = append(bundles, filepath.Join(root, filepath.FromSlash(match)))
	}
	sort.Strings(bundles)

	apps := make([]Application, 0, len(bundles))
	for _, bundle := range bundles {
		appID, err := s.bundleIdentifier(bundle)
		if err != nil {
			logEvent(s.env, "skipping unreadable bundle", "path", bundle, "error", err)
			continue
		}
		apps = append(apps, Application{AppIdentifier: appID, Path: bundle})
	}
	span.SetAttributes(attribute.Int("applications", len(apps)))
	return apps, nil
}

func (s *SimctlSimulator) bundleIdentifier(bundle string) (string, error) {
	out, err := s.runner.Output(s.env.Plutil, "-convert", "json", "-o", "-", filepath.Join(bundle, "Info.plist"))
	if err != nil {
		return "", err
	}
	var plist infoPlist
	if err := sonic.Unmarshal(out, &plist); err != nil {
		return "", fmt.Errorf("decode Info.plist: %w", err)
	}
	if plist.BundleIdentifier == "" {
		return "", fmt.Errorf("%s has no CFBundleIdentifier", bundle)
	}
	return plist.BundleIdentifier, nil
}
