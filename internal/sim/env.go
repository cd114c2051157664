// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package sim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "IOSSIMCTL"

type Env struct {
	Xcrun         string        `envconfig:"XCRUN" default:"xcrun"`
	Xcodebuild    string        `envconfig:"XCODEBUILD" default:"xcodebuild"`
	Open          string        `envconfig:"OPEN" default:"open"`
	Tail          string        `envconfig:"TAIL" default:"tail"`
	Plutil        string        `envconfig:"PLUTIL" default:"plutil"`
	SimulatorApp  string        `envconfig:"SIMULATOR_APP" default:"Simulator"`
	HostProcess   string        `envconfig:"HOST_PROCESS" default:"Simulator"`
	DefaultDevice string        `envconfig:"DEFAULT_DEVICE" default:"iPhone 6"`
	LogsDir       string        `envconfig:"LOGS_DIR"`    // default ~/Library/Logs/CoreSimulator
	DevicesDir    string        `envconfig:"DEVICES_DIR"` // default ~/Library/Developer/CoreSimulator/Devices
	BootSettle    time.Duration `envconfig:"BOOT_SETTLE" default:"1s"`
	LaunchSettle  time.Duration `envconfig:"LAUNCH_SETTLE" default:"500ms"`
	BootTimeout   time.Duration `envconfig:"BOOT_TIMEOUT" default:"30s"`
	// CorrelationID is used to tie logs to a specific workflow/activity.
	CorrelationID string `envconfig:"CORRELATION_ID"`
	// Context is used to parent OpenTelemetry spans and to bound commands.
	Context context.Context `ignored:"true"`
}

// Detect loads an optional .env file and reads IOSSIMCTL_* variables on top
// of the built-in defaults.
func Detect() (Env, error) {
	if err := loadDotEnv(); err != nil {
		return Env{}, fmt.Errorf("load dotenv: %w", err)
	}
	var env Env
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("read %s environment: %w", envPrefix, err)
	}
	if env.CorrelationID == "" {
		env.CorrelationID = os.Getenv("CREDIMI_CORRELATION_ID")
	}

	home := homeDir()
	if env.LogsDir == "" {
		env.LogsDir = filepath.Join(home, "Library", "Logs", "CoreSimulator")
	}
	if env.DevicesDir == "" {
		env.DevicesDir = filepath.Join(home, "Library", "Developer", "CoreSimulator", "Devices")
	}
	env.Context = context.Background()
	return env, nil
}

func loadDotEnv() error {
	path := os.Getenv(envPrefix + "_DOTENV")
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	return godotenv.Load(path)
}

func homeDir() string {
	if usr, _ := user.Current(); usr != nil && usr.HomeDir != "" {
		return usr.HomeDir
	}
	return os.Getenv("HOME")
}

func (env Env) context() context.Context {
	if env.Context != nil {
		return env.Context
	}
	return context.Background()
}
