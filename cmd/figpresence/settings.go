package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/figpresence/internal/daemon"
	"github.com/eliteGoblin/focusd/figpresence/internal/infra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change presence settings",
	Long: `Settings are stored encrypted in the data directory and picked up by the
running daemon on its next cycle.

Keys:
  enabled                 broadcast anything at all (true/false)
  privacy.hide_filename   show "Working on a file" instead of the name
  privacy.hide_buttons    omit the "View in Figma" button
  privacy.hide_activity   show a generic activity
  discord.client_id       override the Discord application id`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsReset,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}

func openSettings(cmd *cobra.Command) (*infra.SettingsDB, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	store, err := infra.OpenSettingsDB(cfg.DataDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open settings: %w", err)
	}
	return store, cfg.DataDir, nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	store, _, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	values := infra.SettingValues(settings)
	for _, key := range infra.SettingKeys() {
		value := values[key]
		if key == infra.SettingClientID && value == "" {
			value = "(from config)"
		}
		fmt.Printf("%-24s %s\n", key, value)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	store, dataDir, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	key, value := args[0], args[1]
	if err := store.Set(key, value); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", key, value)

	// A new client id only takes effect on the next handshake.
	if key == infra.SettingClientID {
		requestReconnect(dataDir)
	}
	return nil
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	store, dataDir, err := openSettings(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(); err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	fmt.Println("Settings restored to defaults")
	requestReconnect(dataDir)
	return nil
}

func requestReconnect(dataDir string) {
	pm := infra.NewProcessManager()
	entry, ok := daemon.FindRunning(infra.NewFileStatusRegistry(dataDir), pm)
	if !ok {
		return
	}
	if err := pm.Hangup(entry.PID); err != nil {
		fmt.Printf("Restart the daemon to apply the change (%v)\n", err)
		return
	}
	fmt.Println("Daemon asked to reconnect")
}
