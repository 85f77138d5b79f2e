//go:build windows

package discord

import (
	"context"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

// endpoints lists named pipe paths. An override replaces the \\.\pipe prefix.
func endpoints(override string) []string {
	dir := `\\.\pipe`
	if override != "" {
		dir = override
	}
	paths := make([]string, 0, maxPipes)
	for i := 0; i < maxPipes; i++ {
		paths = append(paths, strings.TrimRight(dir, `\`)+`\`+pipeName(i))
	}
	return paths
}

func socketDialer(override string) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		return dialFirst(ctx, endpoints(override), func(ctx context.Context, path string) (net.Conn, error) {
			return winio.DialPipeContext(ctx, path)
		})
	}
}
