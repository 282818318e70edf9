//go:build !linux

package workerproc

import "fmt"

// Install is unsupported outside Linux; the sandbox worker only runs
// inside Linux containers in production.
func Install() error {
	return fmt.Errorf("workerproc: seccomp filtering is only supported on linux")
}
