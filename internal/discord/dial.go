package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// maxPipes is how many discord-ipc-N endpoints Discord may listen on.
const maxPipes = 10

// ErrDiscordNotRunning means no IPC endpoint accepted a connection.
var ErrDiscordNotRunning = errors.New("discord: no ipc endpoint found, is Discord running?")

func pipeName(i int) string {
	return fmt.Sprintf("discord-ipc-%d", i)
}

// dialFirst tries each endpoint in order and returns the first that connects.
func dialFirst(ctx context.Context, endpoints []string, dial func(context.Context, string) (net.Conn, error)) (net.Conn, error) {
	for _, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := dial(ctx, ep)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrDiscordNotRunning
}
