//go:build !linux && !darwin

package logger

// isTerminal reports false on platforms without terminal detection.
func isTerminal(fd uintptr) bool {
	return false
}
