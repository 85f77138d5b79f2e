package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

const (
	// AppName names the data directory, log files and binary.
	AppName = "figpresence"

	// LaunchAgentLabel is the launchd label of the login item.
	LaunchAgentLabel = "com.figpresence.agent"
)

// Paths holds the file locations the CLI and daemon share.
type Paths struct {
	DataDir         string // Settings database, key, status and logs
	ConfigFile      string // Optional config.yaml
	LogPath         string // Daemon log
	StdoutPath      string // launchd stdout capture
	StderrPath      string // launchd stderr capture
	LaunchAgentsDir string
	PlistPath       string
	UserConfigDir   string // OS config root where desktop apps keep their state
}

// ResolvePaths derives every location from dataDir. An empty dataDir uses DefaultDataDir.
func ResolvePaths(dataDir string) *Paths {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	dataDir = ExpandHome(dataDir)
	home := GetRealUserHome()

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = ""
	}

	launchAgents := filepath.Join(home, "Library", "LaunchAgents")
	return &Paths{
		DataDir:         dataDir,
		ConfigFile:      filepath.Join(dataDir, "config.yaml"),
		LogPath:         filepath.Join(dataDir, AppName+".log"),
		StdoutPath:      filepath.Join(dataDir, AppName+".out.log"),
		StderrPath:      filepath.Join(dataDir, AppName+".err.log"),
		LaunchAgentsDir: launchAgents,
		PlistPath:       filepath.Join(launchAgents, LaunchAgentLabel+".plist"),
		UserConfigDir:   configDir,
	}
}

// DefaultDataDir is <user config dir>/figpresence, or ~/.figpresence when the
// OS reports no config dir.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(GetRealUserHome(), "."+AppName)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return GetRealUserHome()
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(GetRealUserHome(), path[2:])
	}
	return path
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
