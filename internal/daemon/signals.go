package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// HandleSignals cancels on SIGINT/SIGTERM and calls reconnect on SIGHUP.
// The watcher goroutine exits when ctx is done.
func HandleSignals(ctx context.Context, cancel context.CancelFunc, reconnect func(), logger *zap.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				if sig == syscall.SIGHUP {
					logger.Info("reconnect requested by signal")
					reconnect()
					continue
				}
				logger.Info("received shutdown signal", zap.Stringer("signal", sig))
				cancel()
				return
			}
		}
	}()
}
