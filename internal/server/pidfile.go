package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrPIDFileNotFound indicates the PID file does not exist.
	ErrPIDFileNotFound = errors.New("pid file not found")
	// ErrInvalidPID indicates the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid pid in file")
	// ErrAlreadyRunning indicates another live server holds the PID file.
	ErrAlreadyRunning = errors.New("another server is already running on this data directory")
)

// WritePID writes the given PID to the specified file.
func WritePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

// ReadPID reads the PID from the specified file.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrPIDFileNotFound
		}
		return 0, fmt.Errorf("reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}
	return pid, nil
}

// RemovePID removes the PID file. A missing file is not an error.
func RemovePID(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	// to check if the process actually exists
	return process.Signal(syscall.Signal(0)) == nil
}

// AcquirePIDFile records the current process in path. It fails with
// ErrAlreadyRunning while another live process is recorded there; stale
// or unreadable files are replaced. The returned func removes the file.
//
// The check guards against a second server sharing a flat-file data
// directory, which the file backend does not coordinate.
func AcquirePIDFile(path string) (release func() error, err error) {
	pid, err := ReadPID(path)
	switch {
	case err == nil:
		if pid != os.Getpid() && IsProcessRunning(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
	case errors.Is(err, ErrPIDFileNotFound), errors.Is(err, ErrInvalidPID):
	default:
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating pid directory: %w", err)
	}
	if err := WritePID(path, os.Getpid()); err != nil {
		return nil, fmt.Errorf("writing pid file: %w", err)
	}
	return func() error { return RemovePID(path) }, nil
}
