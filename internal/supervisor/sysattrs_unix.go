//go:build !windows

package supervisor

import "syscall"

// childSysProcAttr places the child in its own process group so that a
// single signal can be delivered to it and any children it spawns.
func childSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the process group led by pid.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
