//go:build unix

package spawn

import "syscall"

// processGroupAttr puts a standard child in its own process group so a
// stop can reach any of its descendants via the group.
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
