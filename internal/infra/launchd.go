package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/eliteGoblin/focusd/figpresence/internal/domain"
)

// LaunchAgent plist template (runs as the logged-in user)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>--data-dir</string>
        <string>{{.DataDir}}</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.StdoutPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.StderrPath}}</string>

    <key>ProcessType</key>
    <string>Interactive</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>`

const launchctlTimeout = 10 * time.Second

type plistConfig struct {
	Label          string
	ExecutablePath string
	DataDir        string
	StdoutPath     string
	StderrPath     string
}

// LaunchAgentManager implements domain.AutostartManager with a macOS LaunchAgent.
type LaunchAgentManager struct {
	paths  *Paths
	runner CommandRunner
}

// NewLaunchAgentManager creates a LaunchAgent manager for paths.
func NewLaunchAgentManager(paths *Paths, runner CommandRunner) *LaunchAgentManager {
	if runner == nil {
		runner = &RealCommandRunner{}
	}
	return &LaunchAgentManager{paths: paths, runner: runner}
}

// generatePlistContent creates plist content for the given exec path.
func (m *LaunchAgentManager) generatePlistContent(execPath string) ([]byte, error) {
	config := plistConfig{
		Label:          LaunchAgentLabel,
		ExecutablePath: execPath,
		DataDir:        m.paths.DataDir,
		StdoutPath:     m.paths.StdoutPath,
		StderrPath:     m.paths.StderrPath,
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the plist and loads it. An existing agent is reloaded.
func (m *LaunchAgentManager) Install(execPath string) error {
	if err := os.MkdirAll(m.paths.LaunchAgentsDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(m.paths.DataDir, 0700); err != nil {
		return err
	}

	content, err := m.generatePlistContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate plist content: %w", err)
	}

	if m.IsInstalled() {
		_ = m.launchctl("unload") // Not loaded is fine
	}
	if err := os.WriteFile(m.paths.PlistPath, content, 0644); err != nil {
		return err
	}

	if err := m.launchctl("load"); err != nil {
		return fmt.Errorf("launchctl load: %w", err)
	}
	return nil
}

// Uninstall unloads and removes the plist.
func (m *LaunchAgentManager) Uninstall() error {
	_ = m.launchctl("unload") // Not loaded is fine

	if err := os.Remove(m.paths.PlistPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsInstalled checks if the plist exists.
func (m *LaunchAgentManager) IsInstalled() bool {
	_, err := os.Stat(m.paths.PlistPath)
	return err == nil
}

// NeedsUpdate checks if the plist exists but differs from what Install would write.
func (m *LaunchAgentManager) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false // Needs install, not update
	}

	currentContent, err := os.ReadFile(m.paths.PlistPath)
	if err != nil {
		return true
	}
	expectedContent, err := m.generatePlistContent(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(currentContent, expectedContent)
}

// Path returns the plist file path.
func (m *LaunchAgentManager) Path() string {
	return m.paths.PlistPath
}

// launchctl runs `launchctl <verb> <plist>`.
// `load`/`unload` are deprecated in favour of bootstrap/bootout but still work for gui agents.
func (m *LaunchAgentManager) launchctl(verb string) error {
	ctx, cancel := context.WithTimeout(context.Background(), launchctlTimeout)
	defer cancel()
	return m.runner.Run(ctx, "launchctl", verb, m.paths.PlistPath)
}

// Ensure LaunchAgentManager implements domain.AutostartManager.
var _ domain.AutostartManager = (*LaunchAgentManager)(nil)
