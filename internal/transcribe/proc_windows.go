//go:build windows

package transcribe

import "os/exec"

// configureProcess keeps the default Cancel, which terminates the process.
func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
