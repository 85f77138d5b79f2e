// Package policy implements the Strategy pattern for app-specific watching rules.
// Each watched app (Figma) has its own profile defining how to detect it and
// how to turn its window title into a file.
package policy

import "path/filepath"

// AppProfile defines the strategy interface for watching an application.
type AppProfile interface {
	// ID returns unique identifier (e.g., "figma").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessNames returns executable names of the app's main process.
	// Names are matched case-insensitively, ignoring a ".exe" suffix.
	ProcessNames() []string

	// ParseTitle extracts the file name from a main window title.
	// ok is false when the title does not name a file.
	ParseTitle(title string) (name string, ok bool)

	// RecentFilesDir returns the directory holding the app's recent-file
	// descriptors, relative to the user config directory.
	RecentFilesDir(configDir string) string

	// FileURL returns the web link for a file key.
	FileURL(key string) string

	// HomeURL is linked when the file has no known key.
	HomeURL() string

	// ActivityLabel is the presence state shown while a file is open.
	ActivityLabel() string

	// ViewLabel is the caption of the link button.
	ViewLabel() string
}

// GenericFileName is reported when the app is running but no file name can be read.
const GenericFileName = "Working on a design"

// recentFilesDir joins a profile's folder name onto the config directory.
func recentFilesDir(configDir, folder string) string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, folder)
}
