// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package simmanager

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/forkbombeu/iossimctl/internal/sim"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "iossimctl/simmanager"

var (
	// ErrDeviceNotFound is returned when an identifier matches no simulator.
	ErrDeviceNotFound = sim.ErrDeviceNotFound
	// ErrNoDeviceAvailable is returned when no iOS simulator is installed.
	ErrNoDeviceAvailable = sim.ErrNoDeviceAvailable
	// ErrUnsupported is returned by the legacy simulator for simctl-only operations.
	ErrUnsupported = sim.ErrUnsupported
)

// IsDeviceNotFound reports whether err means an unknown device identifier.
func IsDeviceNotFound(err error) bool { return sim.IsDeviceNotFound(err) }

// Manager provides high-level simulator operations.
type Manager struct {
	env sim.Env
	sim sim.Simulator
}

// New creates a new Manager with the environment read from IOSSIMCTL_* variables.
func New() (*Manager, error) {
	return NewWithContextAndCorrelationID(context.Background(), "")
}

// NewWithCorrelationID creates a new Manager with a correlation ID for structured logs.
func NewWithCorrelationID(correlationID string) (*Manager, error) {
	return NewWithContextAndCorrelationID(context.Background(), correlationID)
}

// NewWithContext creates a new Manager with a custom context for tracing.
func NewWithContext(ctx context.Context) (*Manager, error) {
	return NewWithContextAndCorrelationID(ctx, "")
}

// NewWithContextAndCorrelationID creates a new Manager with a custom context and correlation ID.
// An empty correlation ID keeps the one found in the environment.
func NewWithContextAndCorrelationID(ctx context.Context, correlationID string) (*Manager, error) {
	env, err := sim.Detect()
	if err != nil {
		return nil, err
	}
	if ctx != nil {
		env.Context = ctx
	}
	if correlationID != "" {
		env.CorrelationID = correlationID
	}
	return newManager(env), nil
}

// NewWithEnv creates a new Manager with custom environment configuration.
// Empty fields keep their detected defaults.
func NewWithEnv(cfg Environment) (*Manager, error) {
	env, err := sim.Detect()
	if err != nil {
		return nil, err
	}
	overlay(&env.Xcrun, cfg.XcrunBin)
	overlay(&env.Xcodebuild, cfg.XcodebuildBin)
	overlay(&env.Open, cfg.OpenBin)
	overlay(&env.Tail, cfg.TailBin)
	overlay(&env.Plutil, cfg.PlutilBin)
	overlay(&env.SimulatorApp, cfg.SimulatorApp)
	overlay(&env.HostProcess, cfg.HostProcess)
	overlay(&env.DefaultDevice, cfg.DefaultDevice)
	overlay(&env.LogsDir, cfg.LogsDir)
	overlay(&env.DevicesDir, cfg.DevicesDir)
	overlay(&env.CorrelationID, cfg.CorrelationID)
	if cfg.BootSettle > 0 {
		env.BootSettle = cfg.BootSettle
	}
	if cfg.LaunchSettle > 0 {
		env.LaunchSettle = cfg.LaunchSettle
	}
	if cfg.BootTimeout != 0 {
		env.BootTimeout = cfg.BootTimeout
	}
	if cfg.Context != nil {
		env.Context = cfg.Context
	}
	return newManager(env), nil
}

func overlay(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func newManager(env sim.Env) *Manager {
	runner := sim.NewRunner(env)
	simulator := sim.SelectSimulator(env, sim.NewVersionProbe(env, runner), func() sim.Simulator {
		return sim.NewDefaultSimctlSimulator(env)
	})
	return &Manager{env: env, sim: simulator}
}

// Environment holds configuration for the Xcode tools and simulator paths.
type Environment struct {
	XcrunBin      string          // Path to xcrun (default: "xcrun")
	XcodebuildBin string          // Path to xcodebuild (default: "xcodebuild")
	OpenBin       string          // Path to open (default: "open")
	TailBin       string          // Path to tail, used for pre-iOS 11 logs (default: "tail")
	PlutilBin     string          // Path to plutil (default: "plutil")
	SimulatorApp  string          // Simulator application name for `open -a` (default: "Simulator")
	HostProcess   string          // Process name of the running simulator host (default: "Simulator")
	DefaultDevice string          // Device name used when nothing else matches (default: "iPhone 6")
	LogsDir       string          // CoreSimulator logs (default ~/Library/Logs/CoreSimulator)
	DevicesDir    string          // CoreSimulator devices (default ~/Library/Developer/CoreSimulator/Devices)
	BootSettle    time.Duration   // Delay after a boot (default: 1s)
	LaunchSettle  time.Duration   // Delay after launch and stop (default: 500ms)
	BootTimeout   time.Duration   // Bound for the Booted state poll, negative disables it (default: 30s)
	CorrelationID string          // Correlation ID for log enrichment
	Context       context.Context // Context for tracing and command cancellation
}

// Device describes one simulator.
type Device struct {
	ID             string // UDID
	Name           string // e.g. "iPhone 15"
	RuntimeVersion string // iOS version, e.g. "17.2"
	State          string // Booted, Shutdown, ...
	TypeID         string // CoreSimulator device type identifier
	DataPath       string // Simulator data directory, when reported
	DataPathSize   int64  // Bytes used by DataPath, when reported
}

// SDK is an installed iOS runtime as seen through one device.
type SDK struct {
	DisplayName string
	Version     string
}

// Application is an installed application bundle.
type Application struct {
	BundleID string
	Path     string
}

// Options selects a device and tunes application launches.
type Options struct {
	Device          string   // Device UDID or name
	SDKVersion      string   // iOS runtime version
	SkipInstall     bool     // Run only: launch without installing
	WaitForDebugger bool     // Launch suspended until a debugger attaches
	Args            []string // Extra application arguments
}

// LogStream is a running device log process.
type LogStream interface {
	Stdout() io.Reader
	Pid() int
	Wait() error
	Kill() error
}

func (o Options) internal() sim.Options {
	return sim.Options{
		Device:          o.Device,
		SDKVersion:      o.SDKVersion,
		SkipInstall:     o.SkipInstall,
		WaitForDebugger: o.WaitForDebugger,
		Args:            o.Args,
	}
}

func fromDevice(d sim.Device) Device {
	return Device{
		ID:             d.ID,
		Name:           d.Name,
		RuntimeVersion: d.RuntimeVersion,
		State:          string(d.State),
		TypeID:         d.FullID,
		DataPath:       d.DataPath,
		DataPathSize:   d.DataPathSize,
	}
}

func (m *Manager) startSpan(name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m.env.CorrelationID != "" {
		attrs = append(attrs, attribute.String("correlation_id", m.env.CorrelationID))
	}
	ctx := m.env.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Legacy reports whether the Xcode 5 simulator was selected.
func (m *Manager) Legacy() bool {
	_, ok := m.sim.(*sim.LegacySimulator)
	return ok
}

// ValidateDeviceIdentifier checks that identifier names a known device.
// The empty identifier is always valid.
func (m *Manager) ValidateDeviceIdentifier(identifier string) error {
	return m.sim.ValidateDeviceIdentifier(identifier)
}

// Devices lists the available iOS simulators.
func (m *Manager) Devices() ([]Device, error) {
	devices, err := m.sim.Devices()
	if err != nil {
		return nil, err
	}
	result := make([]Device, len(devices))
	for i, d := range devices {
		result[i] = fromDevice(d)
	}
	return result, nil
}

// SDKs lists one SDK entry per available device, duplicates included.
func (m *Manager) SDKs() ([]SDK, error) {
	sdks, err := m.sim.SDKs()
	if err != nil {
		return nil, err
	}
	result := make([]SDK, len(sdks))
	for i, s := range sdks {
		result[i] = SDK{DisplayName: s.DisplayName, Version: s.Version}
	}
	return result, nil
}

// Boot resolves a device from opts and makes sure it is booted.
func (m *Manager) Boot(opts Options) error {
	_, span := m.startSpan("simmanager.Boot",
		attribute.String("device", opts.Device),
		attribute.String("sdk_version", opts.SDKVersion),
	)
	err := m.sim.StartSimulator(opts.internal(), nil)
	endSpan(span, err)
	return err
}

// Run boots a device, installs appPath unless SkipInstall is set, and launches appID.
func (m *Manager) Run(appPath, appID string, opts Options) (string, error) {
	_, span := m.startSpan("simmanager.Run",
		attribute.String("app_id", appID),
		attribute.String("device", opts.Device),
	)
	result, err := m.sim.Run(appPath, appID, opts.internal())
	endSpan(span, err)
	return result, err
}

// SendNotification posts a Darwin notification on a device.
func (m *Manager) SendNotification(notification, deviceID string) error {
	return m.sim.SendNotification(notification, deviceID)
}

// ApplicationPath returns the installed bundle path of appID.
func (m *Manager) ApplicationPath(deviceID, appID string) (string, error) {
	return m.sim.ApplicationPath(deviceID, appID)
}

// InstalledApplications lists the user-installed applications of a device.
func (m *Manager) InstalledApplications(deviceID string) ([]Application, error) {
	apps, err := m.sim.InstalledApplications(deviceID)
	if err != nil {
		return nil, err
	}
	result := make([]Application, len(apps))
	for i, a := range apps {
		result[i] = Application{BundleID: a.AppIdentifier, Path: a.Path}
	}
	return result, nil
}

// InstallApplication installs the .app bundle at appPath.
func (m *Manager) InstallApplication(deviceID, appPath string) error {
	return m.sim.InstallApplication(deviceID, appPath)
}

// UninstallApplication removes appID. Failures are logged, not returned.
func (m *Manager) UninstallApplication(deviceID, appID string) error {
	return m.sim.UninstallApplication(deviceID, appID)
}

// StartApplication launches an installed application and returns the launch output.
func (m *Manager) StartApplication(deviceID, appID string, opts Options) (string, error) {
	return m.sim.StartApplication(deviceID, appID, opts.internal())
}

// StopApplication stops an application on a best-effort basis.
// It returns the tool output, or "" when stopping failed.
func (m *Manager) StopApplication(deviceID, appID, executable string) string {
	return m.sim.StopApplication(deviceID, appID, executable)
}

// DeviceLogProcess starts streaming the device log. The process is started
// once per Manager and returned again on later calls.
func (m *Manager) DeviceLogProcess(deviceID, predicate string) (LogStream, error) {
	proc, err := m.sim.DeviceLogProcess(deviceID, predicate)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

// WriteMetrics writes the operation counters in Prometheus text format.
func (m *Manager) WriteMetrics(path string) error {
	if path == "" {
		return errors.New("metrics path is empty")
	}
	return sim.WriteMetrics(path)
}

// SetLogOutput redirects the structured JSON logs, by default written to stdout.
func SetLogOutput(w io.Writer) { sim.SetLogOutput(w) }
