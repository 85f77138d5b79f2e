package policy

import (
	"net/url"
	"regexp"
	"strings"
)

// figmaTitleSuffix matches the " – Figma" / " - Figma" suffix of a window title.
var figmaTitleSuffix = regexp.MustCompile(`(?i)\s*[–—-]\s*Figma\s*$`)

// FigmaProfile implements AppProfile for the Figma desktop app.
type FigmaProfile struct{}

// NewFigmaProfile creates the Figma watching profile.
func NewFigmaProfile() *FigmaProfile {
	return &FigmaProfile{}
}

func (p *FigmaProfile) ID() string {
	return "figma"
}

func (p *FigmaProfile) Name() string {
	return "Figma"
}

// ProcessNames returns Figma main process names.
// Helper processes such as figma_agent run without the app and are not listed.
func (p *FigmaProfile) ProcessNames() []string {
	return []string{
		"Figma",
		"Figma Beta",
		"figma-linux",
	}
}

// ParseTitle strips the app suffix from titles like "Mockup v2 – Figma".
// A bare "Figma" title is the file browser, not a file.
func (p *FigmaProfile) ParseTitle(title string) (string, bool) {
	title = strings.TrimSpace(title)
	if title == "" || strings.EqualFold(title, "Figma") {
		return "", false
	}

	name := strings.TrimSpace(figmaTitleSuffix.ReplaceAllString(title, ""))
	if name == "" || strings.EqualFold(name, "Figma") {
		return "", false
	}
	return name, true
}

func (p *FigmaProfile) RecentFilesDir(configDir string) string {
	return recentFilesDir(configDir, "Figma Desktop")
}

func (p *FigmaProfile) FileURL(key string) string {
	return "https://www.figma.com/file/" + url.PathEscape(key)
}

func (p *FigmaProfile) HomeURL() string {
	return "https://www.figma.com"
}

func (p *FigmaProfile) ActivityLabel() string {
	return "Designing in Figma"
}

func (p *FigmaProfile) ViewLabel() string {
	return "View in Figma"
}

// Ensure FigmaProfile implements AppProfile.
var _ AppProfile = (*FigmaProfile)(nil)
