// Package lock guards against overlapping runs, e.g. a cron firing while the
// previous invocation is still uploading.
package lock

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

type Entry struct {
	Pid       int    `yaml:"pid"`
	StartedAt string `yaml:"started_at"`
}

func readLock(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry Entry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// createLock creates the lock file atomically; false means the file already
// exists.
func createLock(path string, entry *Entry) (bool, error) {
	data, err := yaml.Marshal(entry)
	if err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	if err == syscall.ESRCH {
		return false
	}
	return true
}

// Returns a release function which should be called (deferred) when work is done.
func Acquire(lockPath string) (func() error, error) {
	entry := &Entry{
		Pid:       os.Getpid(),
		StartedAt: time.Now().Format(time.RFC3339),
	}
	release := func() error {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	// Two invocations starting at the same moment race on this create; only
	// one O_EXCL create can win.
	created, err := createLock(lockPath, entry)
	if err != nil {
		return nil, err
	}
	if created {
		return release, nil
	}

	existing, err := readLock(lockPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Pid <= 0 {
			return nil, fmt.Errorf("lock file %s has no pid; remove it manually if no backup is running", lockPath)
		}
		if isProcessAlive(existing.Pid) {
			return nil, fmt.Errorf("already locked by pid %d (started %s)", existing.Pid, existing.StartedAt)
		}
		slog.Warn("Reclaiming stale lock from dead process", "pid", existing.Pid, "startedAt", existing.StartedAt)
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	created, err = createLock(lockPath, entry)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("already locked by a concurrent invocation")
	}
	return release, nil
}
