//go:build !windows

package discord_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/figpresence/internal/discord"
	"github.com/eliteGoblin/focusd/figpresence/test/fixtures"
)

// shortTempDir keeps unix socket paths under the sun_path limit.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestClient_UnixSocket(t *testing.T) {
	dir := shortTempDir(t)
	fake := fixtures.NewFakeDiscord()
	require.NoError(t, fake.Listen(dir))
	defer fake.Close()

	client := discord.NewClient(discord.Options{SocketDir: dir}, zap.NewNop())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Open(ctx, creds))
	assert.Equal(t, []string{"1234567890"}, fake.Handshakes())
}

func TestClient_NoSocket(t *testing.T) {
	client := discord.NewClient(discord.Options{SocketDir: shortTempDir(t)}, zap.NewNop())

	err := client.Open(context.Background(), creds)
	assert.ErrorIs(t, err, discord.ErrDiscordNotRunning)
}
