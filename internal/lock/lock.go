// Package lock serializes deploy runs that share an output directory.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("lock held by another run")

// Lock is an exclusive flock on a file inside the guarded directory.
type Lock struct {
	path string
	file *os.File
}

// New creates a lock named name guarding dir. The lock file lives at
// <dir>/.roger/locks/<name>.lock.
func New(dir, name string) *Lock {
	return &Lock{
		path: filepath.Join(dir, ".roger", "locks", name+".lock"),
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking. It fails with ErrLocked when
// another process holds it; the holder's PID is included when readable.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		l.file = nil
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("%s%s: %w", l.name(), l.holder(), ErrLocked)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	// PID for the next contender's error message.
	f.Truncate(0)
	f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	l.file = f
	return nil
}

// Release drops the lock and removes the lock file. Releasing a lock that
// was never acquired is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		l.file = nil
		return fmt.Errorf("release lock: %w", err)
	}

	l.file.Close()
	os.Remove(l.path)
	l.file = nil

	return nil
}

func (l *Lock) name() string {
	return strings.TrimSuffix(filepath.Base(l.path), ".lock")
}

func (l *Lock) holder() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return ""
	}
	pid := strings.TrimSpace(string(data))
	if pid == "" {
		return ""
	}
	return " (pid " + pid + ")"
}

// WithLock runs fn while holding the named lock on dir.
func WithLock(dir, name string, fn func() error) error {
	lock := New(dir, name)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	return fn()
}
