//go:build windows

package scheduler

import "os"

// FileLock on Windows uses exclusive file creation as a best-effort
// single-runner guard.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a FileLock for the given path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to create the lock file exclusively.
func (l *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	l.file = f
	return true, nil
}

// Unlock removes the lock file.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	name := l.file.Name()
	l.file.Close()
	l.file = nil
	return os.Remove(name)
}
