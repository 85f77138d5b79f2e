//go:build !windows

package discord

import (
	"context"
	"net"
	"os"
	"path/filepath"
)

// Sandboxed Discord builds put the socket in a subdirectory of the runtime dir.
var sandboxSubdirs = []string{
	"",
	"app/com.discordapp.Discord",
	"snap.discord",
}

// socketDirs lists candidate directories in lookup order.
func socketDirs(override string) []string {
	if override != "" {
		return []string{override}
	}
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			dirs = append(dirs, v)
		}
	}
	return append(dirs, "/tmp")
}

// endpoints lists socket paths to try for the given directory override.
func endpoints(override string) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, dir := range socketDirs(override) {
		for _, sub := range sandboxSubdirs {
			if override != "" && sub != "" {
				continue
			}
			for i := 0; i < maxPipes; i++ {
				p := filepath.Join(dir, sub, pipeName(i))
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			}
		}
	}
	return paths
}

func socketDialer(override string) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return dialFirst(ctx, endpoints(override), func(ctx context.Context, path string) (net.Conn, error) {
			if _, err := os.Stat(path); err != nil {
				return nil, err
			}
			return d.DialContext(ctx, "unix", path)
		})
	}
}
