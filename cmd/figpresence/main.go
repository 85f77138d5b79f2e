// Package main is the CLI entry point for figpresence.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/config"
	"github.com/eliteGoblin/focusd/figpresence/internal/daemon"
	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
	"github.com/eliteGoblin/focusd/figpresence/internal/infra"
	"github.com/eliteGoblin/focusd/figpresence/internal/logging"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "figpresence",
	Short: "Show what you are designing in Figma on Discord",
	Long: `figpresence watches the Figma desktop app and mirrors the file you are
working on into your Discord Rich Presence. It runs in the background,
talks to the local Discord client over IPC, and honours privacy settings
that hide the file name, the activity or the link button.`,
	Version:      Version,
	SilenceUsage: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the presence daemon in the background",
	RunE:  runStart,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the presence daemon in the foreground",
	Long:  `Runs the daemon attached to the terminal with human readable logs. Stop it with Ctrl-C.`,
	RunE:  runForeground,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	RunE:  runStop,
}

var reconnectCmd = &cobra.Command{
	Use:   "reconnect",
	Short: "Ask the running daemon to reconnect to Discord",
	RunE:  runReconnect,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Shows whether the daemon is running, its Discord connection and the file being broadcast.`,
	RunE:  runStatus,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start figpresence automatically at login (macOS)",
	RunE:  runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the login item (macOS)",
	RunE:  runUninstall,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec and by the login item
var daemonCmd = &cobra.Command{
	Use:    daemon.DaemonCommand,
	Hidden: true,
	RunE:   runDaemon,
}

var (
	configFile string
	jsonOutput bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default <data-dir>/config.yaml)")
	pf.String("data-dir", "", "Directory for settings, status and logs")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")

	for _, c := range []*cobra.Command{startCmd, runCmd, daemonCmd} {
		c.Flags().String("app", "", "App profile to watch")
		c.Flags().Duration("poll-interval", 0, "How often to sample the app")
		c.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
		c.Flags().String("client-id", "", "Discord application id")
		c.Flags().String("socket-dir", "", "Directory holding the discord-ipc socket")
	}

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reconnectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Options{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
	})
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileStatusRegistry(cfg.DataDir)
	if entry, ok := daemon.FindRunning(registry, pm); ok {
		fmt.Printf("figpresence is already running (pid %d)\n", entry.PID)
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Forward what was set on our command line; the rest the daemon resolves itself.
	daemonArgs := []string{"--data-dir", cfg.DataDir}
	if configFile != "" {
		daemonArgs = append(daemonArgs, "--config", configFile)
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name != "data-dir" && f.Name != "config" {
			daemonArgs = append(daemonArgs, "--"+f.Name, f.Value.String())
		}
	})

	pid, err := daemon.StartDaemon(execPath, daemonArgs...)
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the daemon to register
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if entry, ok := daemon.FindRunning(registry, pm); ok {
			fmt.Printf("figpresence started (pid %d)\n", entry.PID)
			fmt.Printf("Logs: %s\n", infra.ResolvePaths(cfg.DataDir).LogPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !pm.IsRunning(pid) {
		return fmt.Errorf("daemon exited during startup, see %s", infra.ResolvePaths(cfg.DataDir).LogPath)
	}
	fmt.Printf("figpresence starting (pid %d)\n", pid)
	return nil
}

func runForeground(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewConsole(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	return serve(cfg, logger)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewDaemon(infra.ResolvePaths(cfg.DataDir).LogPath, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := serve(cfg, logger); err != nil {
		logger.Error("daemon exited with error", zap.Error(err))
		return err
	}
	return nil
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	components, err := daemon.Build(cfg, Version, logger)
	if err != nil {
		return err
	}

	logger.Info("watching app",
		zap.String("app", components.Profile.Name()),
		zap.String("data_dir", cfg.DataDir))

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	daemon.HandleSignals(ctx, cancel, components.Engine.RequestReconnect, logger)

	return components.Service.Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileStatusRegistry(cfg.DataDir)
	entry, ok := daemon.FindRunning(registry, pm)
	if !ok {
		fmt.Println("figpresence is not running")
		return nil
	}

	if err := pm.Terminate(entry.PID); err != nil {
		return fmt.Errorf("failed to stop daemon (pid %d): %w", entry.PID, err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !pm.IsRunning(entry.PID) {
			fmt.Println("figpresence stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not exit", entry.PID)
}

func runReconnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	entry, ok := daemon.FindRunning(infra.NewFileStatusRegistry(cfg.DataDir), pm)
	if !ok {
		return errors.New("figpresence is not running")
	}
	if err := pm.Hangup(entry.PID); err != nil {
		// No SIGHUP on Windows.
		return fmt.Errorf("failed to signal daemon (pid %d), restart it with 'figpresence stop' and 'figpresence start': %w", entry.PID, err)
	}
	fmt.Println("Reconnect requested")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	entry, running := daemon.FindRunning(infra.NewFileStatusRegistry(cfg.DataDir), pm)

	if jsonOutput {
		out := struct {
			Running bool                `json:"running"`
			Status  *domain.StatusEntry `json:"status,omitempty"`
		}{Running: running, Status: entry}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("\n=== figpresence Status ===")
	if !running {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'figpresence start' to begin broadcasting.")
		return nil
	}

	fmt.Printf("Status: RUNNING (pid %d, version %s)\n", entry.PID, entry.AppVersion)
	fmt.Printf("Discord: %s\n", entry.ConnectionState)
	if entry.Enabled {
		fmt.Println("Presence: enabled")
	} else {
		fmt.Println("Presence: disabled")
	}
	if entry.CurrentFile != nil {
		fmt.Printf("Current file: %s\n", entry.CurrentFile.DisplayName)
	} else {
		fmt.Println("Current file: none")
	}
	if entry.LastPublish != "" {
		at := time.Unix(entry.LastPublishAt, 0)
		fmt.Printf("Last update: %s, %s ago\n", entry.LastPublish, time.Since(at).Round(time.Second))
	}
	if entry.StartedAt > 0 {
		fmt.Printf("Uptime: %s\n", time.Since(time.Unix(entry.StartedAt, 0)).Round(time.Second))
	}
	if entry.LastHeartbeat > 0 {
		lastBeat := time.Unix(entry.LastHeartbeat, 0)
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
	}

	if runtime.GOOS == "darwin" {
		autostart := infra.NewLaunchAgentManager(infra.ResolvePaths(cfg.DataDir), nil)
		if autostart.IsInstalled() {
			fmt.Println("Auto-start: enabled")
		} else {
			fmt.Println("Auto-start: disabled")
		}
	}
	fmt.Println("==========================")
	return nil
}

func autostartManager(cfg *config.Config) (domain.AutostartManager, error) {
	if runtime.GOOS != "darwin" {
		return nil, fmt.Errorf("auto-start is only supported on macOS (running on %s)", runtime.GOOS)
	}
	return infra.NewLaunchAgentManager(infra.ResolvePaths(cfg.DataDir), &infra.RealCommandRunner{}), nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	autostart, err := autostartManager(cfg)
	if err != nil {
		return err
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	if autostart.IsInstalled() && !autostart.NeedsUpdate(execPath) {
		fmt.Printf("Login item already installed at %s\n", autostart.Path())
		return nil
	}
	if err := autostart.Install(execPath); err != nil {
		return fmt.Errorf("failed to install login item: %w", err)
	}
	fmt.Printf("Installed login item at %s\n", autostart.Path())
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	autostart, err := autostartManager(cfg)
	if err != nil {
		return err
	}

	if !autostart.IsInstalled() {
		fmt.Println("Login item not installed")
		return nil
	}
	if err := autostart.Uninstall(); err != nil {
		return fmt.Errorf("failed to remove login item: %w", err)
	}
	fmt.Println("Removed login item")
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(data))
	} else {
		fmt.Printf("figpresence %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
