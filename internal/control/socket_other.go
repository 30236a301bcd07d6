//go:build !darwin && !linux

package control

// Deliberately no DefaultSocketPath here: the control plane is a
// Unix-domain socket, and this daemon only supports darwin and linux.
// Referencing control.DefaultSocketPath on any other platform is a
// compile-time error rather than a runtime one.
