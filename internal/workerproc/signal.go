//go:build !windows

package workerproc

import "syscall"

func osInterruptSignal() syscall.Signal {
	return syscall.SIGTERM
}
