// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"fmt"
	"strings"
)

// VersionProbe reports the major version of the installed Xcode toolchain.
type VersionProbe interface {
	XcodeMajor() (int, error)
}

type xcodeProbe struct {
	env    Env
	runner Runner
}

func NewVersionProbe(env Env, runner Runner) VersionProbe {
	return &xcodeProbe{env: env, runner: runner}
}

func (p *xcodeProbe) XcodeMajor() (int, error) {
	out, err := p.runner.Output(p.env.Xcodebuild, "-version")
	if err != nil {
		return 0, err
	}
	return parseXcodeMajor(string(out))
}

// parseXcodeMajor reads the first line of `xcodebuild -version`, e.g. "Xcode 15.2".
func parseXcodeMajor(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Xcode ")
		if !ok {
			continue
		}
		if major := majorVersion(rest); major > 0 {
			return major, nil
		}
	}
	return 0, fmt.Errorf("unrecognized xcodebuild version output: %q", strings.TrimSpace(out))
}
