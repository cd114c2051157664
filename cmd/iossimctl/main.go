// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forkbombeu/iossimctl/pkg/simmanager"
)

const exitNotFound = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracing disabled:", err)
	}

	// stdout carries command output
	simmanager.SetLogOutput(os.Stderr)

	var (
		deviceFlag, sdkFlag, metricsPath, correlationID string
		mgr                                             *simmanager.Manager
		span                                            trace.Span
	)

	root := &cobra.Command{
		Use:           "iossimctl",
		Short:         "iOS simulator control through xcrun simctl",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if correlationID == "" && os.Getenv("IOSSIMCTL_CORRELATION_ID") == "" && os.Getenv("CREDIMI_CORRELATION_ID") == "" {
				correlationID = uuid.NewString()
			}
			var spanCtx context.Context
			spanCtx, span = otel.Tracer("iossimctl/cli").Start(ctx, "iossimctl."+cmd.Name(),
				trace.WithAttributes(attribute.String("correlation_id", correlationID)))
			var err error
			mgr, err = simmanager.NewWithContextAndCorrelationID(spanCtx, correlationID)
			return err
		},
	}
	root.PersistentFlags().StringVar(&deviceFlag, "device", "", "device UDID or name")
	root.PersistentFlags().StringVar(&sdkFlag, "sdk", "", "iOS runtime version, e.g. 17.2")
	root.PersistentFlags().StringVar(&metricsPath, "metrics-textfile", "", "write Prometheus counters to this file on exit")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "correlation ID for logs and spans (default: random UUID)")

	options := func() simmanager.Options {
		return simmanager.Options{Device: deviceFlag, SDKVersion: sdkFlag}
	}
	requireDevice := func() (string, error) {
		if deviceFlag == "" {
			return "", errors.New("--device is required")
		}
		return deviceFlag, nil
	}

	// devices
	var devicesJSON bool
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List available iOS simulators",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := mgr.Devices()
			if err != nil {
				return err
			}
			if devicesJSON {
				return encodeJSON(os.Stdout, devices)
			}
			if len(devices) == 0 {
				fmt.Println("(no simulators)")
				return nil
			}
			for _, d := range devices {
				size := "-"
				if d.DataPathSize > 0 {
					size = units.HumanSize(float64(d.DataPathSize))
				}
				fmt.Printf("%-36s %-24s iOS %-6s %-10s %s\n", d.ID, d.Name, d.RuntimeVersion, d.State, size)
			}
			return nil
		},
	}
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "output JSON")
	root.AddCommand(devicesCmd)

	// sdks
	var sdksJSON bool
	sdksCmd := &cobra.Command{
		Use:   "sdks",
		Short: "List iOS runtimes, one entry per simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			sdks, err := mgr.SDKs()
			if err != nil {
				return err
			}
			if sdksJSON {
				return encodeJSON(os.Stdout, sdks)
			}
			for _, s := range sdks {
				fmt.Printf("%-12s %s\n", s.DisplayName, s.Version)
			}
			return nil
		},
	}
	sdksCmd.Flags().BoolVar(&sdksJSON, "json", false, "output JSON")
	root.AddCommand(sdksCmd)

	// boot
	bootCmd := &cobra.Command{
		Use:   "boot",
		Short: "Boot the simulator matching --device/--sdk (no-op when already booted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mgr.Boot(options())
		},
	}
	root.AddCommand(bootCmd)

	// run
	var runApp, runBundle string
	var runSkipInstall, runWait bool
	runCmd := &cobra.Command{
		Use:   "run [-- APP_ARGS...]",
		Short: "Boot a simulator, install the app and launch it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runBundle == "" {
				return errors.New("--bundle-id is required")
			}
			if runApp == "" && !runSkipInstall {
				return errors.New("--app is required unless --skip-install is set")
			}
			opts := options()
			opts.SkipInstall = runSkipInstall
			opts.WaitForDebugger = runWait
			opts.Args = args
			out, err := mgr.Run(runApp, runBundle, opts)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	runCmd.Flags().StringVar(&runApp, "app", "", "path to the .app bundle")
	runCmd.Flags().StringVar(&runBundle, "bundle-id", "", "application bundle identifier")
	runCmd.Flags().BoolVar(&runSkipInstall, "skip-install", false, "launch without installing")
	runCmd.Flags().BoolVar(&runWait, "wait-for-debugger", false, "suspend the app until a debugger attaches")
	root.AddCommand(runCmd)

	// install
	installCmd := &cobra.Command{
		Use:   "install APP_PATH",
		Short: "Install a .app bundle on --device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			return mgr.InstallApplication(id, args[0])
		},
	}
	root.AddCommand(installCmd)

	// uninstall
	uninstallCmd := &cobra.Command{
		Use:   "uninstall BUNDLE_ID",
		Short: "Uninstall an application from --device (failures are only logged)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			return mgr.UninstallApplication(id, args[0])
		},
	}
	root.AddCommand(uninstallCmd)

	// launch
	var launchWait bool
	launchCmd := &cobra.Command{
		Use:   "launch BUNDLE_ID [-- APP_ARGS...]",
		Short: "Launch an installed application on --device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			opts := simmanager.Options{WaitForDebugger: launchWait, Args: args[1:]}
			out, err := mgr.StartApplication(id, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	launchCmd.Flags().BoolVar(&launchWait, "wait-for-debugger", false, "suspend the app until a debugger attaches")
	root.AddCommand(launchCmd)

	// stop
	var stopExecutable string
	stopCmd := &cobra.Command{
		Use:   "stop BUNDLE_ID",
		Short: "Stop an application on --device (best effort)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			if out := mgr.StopApplication(id, args[0], stopExecutable); out != "" {
				fmt.Println(out)
			}
			return nil
		},
	}
	stopCmd.Flags().StringVar(&stopExecutable, "executable", "", "process name, used with Xcode older than 8")
	root.AddCommand(stopCmd)

	// app-path
	appPathCmd := &cobra.Command{
		Use:   "app-path BUNDLE_ID",
		Short: "Print the installed bundle path of an application on --device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			path, err := mgr.ApplicationPath(id, args[0])
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	root.AddCommand(appPathCmd)

	// apps
	var appsJSON bool
	appsCmd := &cobra.Command{
		Use:   "apps",
		Short: "List user-installed applications on --device",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			apps, err := mgr.InstalledApplications(id)
			if err != nil {
				return err
			}
			if appsJSON {
				return encodeJSON(os.Stdout, apps)
			}
			for _, a := range apps {
				fmt.Printf("%-40s %s\n", a.BundleID, a.Path)
			}
			return nil
		},
	}
	appsCmd.Flags().BoolVar(&appsJSON, "json", false, "output JSON")
	root.AddCommand(appsCmd)

	// notify
	notifyCmd := &cobra.Command{
		Use:   "notify NAME",
		Short: "Post a Darwin notification on --device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			return mgr.SendNotification(args[0], id)
		},
	}
	root.AddCommand(notifyCmd)

	// logs
	var logsPredicate string
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Stream the system log of --device until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireDevice()
			if err != nil {
				return err
			}
			stream, err := mgr.DeviceLogProcess(id, logsPredicate)
			if err != nil {
				return err
			}
			if _, err := io.Copy(os.Stdout, stream.Stdout()); err != nil && ctx.Err() == nil {
				return err
			}
			if err := stream.Wait(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	logsCmd.Flags().StringVar(&logsPredicate, "predicate", "", "log stream predicate (iOS 11 and later)")
	root.AddCommand(logsCmd)

	err = root.ExecuteContext(ctx)
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	if mgr != nil && metricsPath != "" {
		if werr := mgr.WriteMetrics(metricsPath); werr != nil {
			fmt.Fprintln(os.Stderr, "write metrics:", werr)
		}
	}
	shutdownTracing(context.Background())
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if simmanager.IsDeviceNotFound(err) {
			os.Exit(exitNotFound)
		}
		os.Exit(1)
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := sonic.ConfigStd.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
