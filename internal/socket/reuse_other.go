//go:build !linux

package socket

import "syscall"

// controlReuseAddr is a no-op on non-Linux platforms; Go's net package
// already sets SO_REUSEADDR on Windows/BSD listeners by default.
func controlReuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
