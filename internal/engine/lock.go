package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// SessionLock provides an exclusive lock for a session's mutating commands.
type SessionLock struct {
	file *os.File
}

// AcquireSessionLock creates and locks .replan/locks/<session>.lock.
func AcquireSessionLock(replanDir, session string) (*SessionLock, error) {
	file, err := openLockFile(replanDir, session)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("lock session %s: %w", session, err)
	}
	return &SessionLock{file: file}, nil
}

// TryAcquireSessionLock attempts to acquire the session lock without
// blocking.
func TryAcquireSessionLock(replanDir, session string) (*SessionLock, bool, error) {
	file, err := openLockFile(replanDir, session)
	if err != nil {
		return nil, false, err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, false, nil
	}
	return &SessionLock{file: file}, true, nil
}

func openLockFile(replanDir, session string) (*os.File, error) {
	locksDir := filepath.Join(replanDir, "locks")
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return nil, fmt.Errorf("create locks dir: %w", err)
	}
	lockPath := filepath.Join(locksDir, session+".lock")
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return file, nil
}

// Release releases the lock.
func (l *SessionLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}
