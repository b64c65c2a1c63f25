// Package state persists the last successful backup time of each tracked
// file: one small file per tracked file under the state directory, holding a
// single epoch-seconds integer.
package state

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Key flattens a tracked file path into a state-file name by substituting
// path separators, so same-named files in different directories never share
// state.
func Key(localPath string) string {
	k := strings.TrimPrefix(filepath.ToSlash(localPath), "/")
	return strings.NewReplacer("/", "_", `\`, "_").Replace(k)
}

func statePath(dir, localPath string) string {
	return filepath.Join(dir, Key(localPath)+".last")
}

// LastRun returns the recorded last successful backup time for a tracked
// file. A missing state file means it was never backed up and reports the
// epoch. A corrupt state file is treated the same way, erring toward an
// extra backup rather than a silent skip.
func LastRun(dir, localPath string) (time.Time, error) {
	path := statePath(dir, localPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Unix(0, 0), nil
		}
		return time.Time{}, fmt.Errorf("failed to read state for %s: %w", localPath, err)
	}

	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		slog.Warn("Ignoring unparsable state file", "path", path, "error", err)
		return time.Unix(0, 0), nil
	}
	return time.Unix(secs, 0), nil
}

// Record stores t as the last successful backup time for a tracked file.
// Callers must only record after the upload fully succeeded; on any failure
// the previous state stays untouched.
func Record(dir, localPath string, t time.Time) error {
	data := strconv.FormatInt(t.Unix(), 10) + "\n"
	if err := os.WriteFile(statePath(dir, localPath), []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write state for %s: %w", localPath, err)
	}
	return nil
}
