//go:build windows

package supervisor

import "syscall"

const createNewProcessGroup = 0x00000200

func childSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// signalGroup has no direct equivalent on Windows; termination is left to
// the caller tearing down the process via its handle. The control socket
// this daemon depends on is unix-only in any case (see internal/control).
func signalGroup(pid int, sig syscall.Signal) error {
	return nil
}
