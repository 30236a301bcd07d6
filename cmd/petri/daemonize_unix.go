//go:build darwin || linux

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// startDaemon re-execs the current binary with --server in a new session,
// detached from this process's controlling terminal and standard streams,
// then returns immediately without waiting for it to become ready; the
// caller retries its own connection instead.
func startDaemon(socketPath string) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer func() { _ = devNull.Close() }()

	cmd := exec.Command(self, "--server", "--socket", socketPath)
	cmd.Dir = "/"
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	// A fresh session loses its inherited umask only via an explicit call;
	// applying it here (rather than in the daemon itself) matches the
	// original's "daemonize before exec" ordering.
	old := syscall.Umask(0)
	defer syscall.Umask(old)

	return cmd.Start()
}
