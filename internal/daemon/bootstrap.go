package daemon

import (
	"os/exec"
)

// DaemonCommand is the hidden CLI subcommand that runs the service.
const DaemonCommand = "daemon"

// StartDaemon spawns execPath as a detached background daemon.
// args are passed after the daemon subcommand (e.g. --data-dir).
func StartDaemon(execPath string, args ...string) (int, error) {
	cmd := daemonCmd(execPath, args...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

func daemonCmd(execPath string, args ...string) *exec.Cmd {
	cmd := exec.Command(execPath, append([]string{DaemonCommand}, args...)...)

	// Detach from parent process
	cmd.SysProcAttr = detachedAttr()

	// No stdin/stdout/stderr - fully detached; the daemon logs to its own file
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd
}
