package infra

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// WindowTitleReader returns the titles of the top-level windows owned by pids.
type WindowTitleReader interface {
	Titles(ctx context.Context, pids []int) ([]string, error)
}

// CommandTitleReader reads window titles through a per-OS helper command:
// PowerShell on Windows, osascript on macOS and xdotool on Linux.
type CommandTitleReader struct {
	runner CommandRunner
	goos   string
}

// NewWindowTitleReader creates a title reader for the running OS.
func NewWindowTitleReader(runner CommandRunner) *CommandTitleReader {
	return NewWindowTitleReaderForOS(runner, runtime.GOOS)
}

// NewWindowTitleReaderForOS creates a title reader for a specific GOOS (for testing).
func NewWindowTitleReaderForOS(runner CommandRunner, goos string) *CommandTitleReader {
	return &CommandTitleReader{runner: runner, goos: goos}
}

// Titles returns non-empty window titles in the order the OS reports them.
func (r *CommandTitleReader) Titles(ctx context.Context, pids []int) ([]string, error) {
	if len(pids) == 0 {
		return nil, nil
	}

	var titles []string
	switch r.goos {
	case "windows":
		out, err := r.runner.Output(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", windowsTitleScript(pids))
		if err != nil {
			return nil, fmt.Errorf("powershell: %w", err)
		}
		titles = splitLines(out)
	case "darwin":
		for _, pid := range pids {
			out, err := r.runner.Output(ctx, "osascript", "-e", darwinTitleScript(pid))
			if err != nil {
				continue // Process may have no windows or exited
			}
			titles = append(titles, splitLines(out)...)
		}
	case "linux":
		for _, pid := range pids {
			out, err := r.runner.Output(ctx, "xdotool", "search", "--pid", strconv.Itoa(pid), "getwindowname", "%@")
			if err != nil {
				continue // xdotool exits 1 when no window matches
			}
			titles = append(titles, splitLines(out)...)
		}
	default:
		return nil, fmt.Errorf("window titles not supported on %s", r.goos)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return titles, nil
}

func windowsTitleScript(pids []int) string {
	ids := make([]string, len(pids))
	for i, pid := range pids {
		ids[i] = strconv.Itoa(pid)
	}
	return fmt.Sprintf(
		"Get-Process -Id %s -ErrorAction SilentlyContinue | Where-Object {$_.MainWindowTitle} | Select-Object -ExpandProperty MainWindowTitle",
		strings.Join(ids, ","),
	)
}

func darwinTitleScript(pid int) string {
	return fmt.Sprintf(`set out to ""
tell application "System Events"
	repeat with w in windows of (first process whose unix id is %d)
		set out to out & (name of w) & linefeed
	end repeat
end tell
return out`, pid)
}

func splitLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var _ WindowTitleReader = (*CommandTitleReader)(nil)
