//go:build darwin

package logger

import (
	"syscall"
	"unsafe"
)

// TIOCGETA is the ioctl number for getting terminal attributes on Darwin
const TIOCGETA = 0x40487413

// isTerminal checks if the file descriptor is a terminal on Darwin
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, err := syscall.Syscall6(
		syscall.SYS_IOCTL,
		fd,
		TIOCGETA,
		uintptr(unsafe.Pointer(&termios)),
		0, 0, 0,
	)
	return err == 0
}
