//go:build linux

package workerproc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deniedSyscalls are the task-creation syscalls spec §4.7 step 3 requires
// the child to deny with EPERM once its entrypoint is about to run: the
// entrypoint is already alive and must not spawn new tasks.
var deniedSyscalls = []uint32{
	unix.SYS_CLONE,
	unix.SYS_CLONE3,
	unix.SYS_FORK,
	unix.SYS_VFORK,
	unix.SYS_EXECVE,
	unix.SYS_EXECVEAT,
}

const (
	bpfLdW  = 0x00 | 0x00 | 0x20 // BPF_LD | BPF_W | BPF_ABS
	bpfJeqK = 0x05 | 0x10 | 0x00 // BPF_JMP | BPF_JEQ | BPF_K
	bpfRetK = 0x06 | 0x00        // BPF_RET | BPF_K

	seccompRetAllow = 0x7fff0000
	seccompRetErrno = 0x00050000 // SECCOMP_RET_ERRNO

	// seccompDataOffNR is the offset of nr (syscall number) within
	// struct seccomp_data on all Linux architectures.
	seccompDataOffNR = 0
)

// buildFilter assembles a classic-BPF program of the shape:
//
//	load syscall nr
//	nr == denied[0]? -> jump to RET_ERRNO
//	nr == denied[1]? -> jump to RET_ERRNO
//	...
//	RET_ALLOW
//	RET_ERRNO
//
// Each comparison instruction's "jump true" offset is computed relative to
// its own position, landing on the RET_ERRNO instruction at the end;
// "jump false" is 0, falling through to the next comparison (or to
// RET_ALLOW once the list is exhausted).
func buildFilter(denied []uint32) []unix.SockFilter {
	n := len(denied)
	program := make([]unix.SockFilter, 0, n+3)
	program = append(program, unix.SockFilter{Code: bpfLdW, K: seccompDataOffNR})

	for i, sysno := range denied {
		// From this comparison, (n - 1 - i) later comparisons remain, plus
		// the RET_ALLOW instruction itself: skip all of them to land
		// exactly on RET_ERRNO.
		jumpToErrno := uint8(n - i)
		program = append(program, unix.SockFilter{
			Code: bpfJeqK,
			Jt:   jumpToErrno,
			Jf:   0,
			K:    sysno,
		})
	}
	program = append(program, unix.SockFilter{Code: bpfRetK, K: seccompRetAllow})
	program = append(program, unix.SockFilter{Code: bpfRetK, K: seccompRetErrno | uint32(unix.EPERM)})
	return program
}

// Install loads the deny-list seccomp filter into the calling thread/
// process. Callers must call this from the dedicated child process
// spawned per entrypoint invocation, never from the long-lived parent,
// since once installed the process itself can no longer fork or exec.
func Install() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("workerproc: prctl(PR_SET_NO_NEW_PRIVS) failed: %w", err)
	}

	filter := buildFilter(deniedSyscalls)
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&prog)), 0, 0); err != nil {
		return fmt.Errorf("workerproc: prctl(PR_SET_SECCOMP) failed: %w", err)
	}
	return nil
}
