package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"
)

type execFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Rclone drives a configured rclone remote through the rclone binary.
type Rclone struct {
	remote string
	exec   execFunc
}

// NewRclone fails fast when the rclone binary is not installed.
func NewRclone(remote string) (*Rclone, error) {
	if _, err := exec.LookPath("rclone"); err != nil {
		return nil, fmt.Errorf("rclone binary not found in PATH: %w", err)
	}
	return &Rclone{remote: remote, exec: runCommand}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

func (r *Rclone) folderRef(folder string) string {
	return r.remote + ":" + folder
}

func (r *Rclone) fileRef(folder, name string) string {
	return r.remote + ":" + path.Join(folder, name)
}

func (r *Rclone) Reachable(ctx context.Context) error {
	if _, err := r.exec(ctx, "rclone", "about", r.remote+":"); err != nil {
		return fmt.Errorf("remote %s is not reachable: %w", r.remote, err)
	}
	return nil
}

func (r *Rclone) Upload(ctx context.Context, localPath, folder, checksum string) error {
	dst := r.fileRef(folder, filepath.Base(localPath))
	if _, err := r.exec(ctx, "rclone", "copyto", localPath, dst); err != nil {
		return fmt.Errorf("rclone copyto %s failed: %w", dst, err)
	}
	slog.Debug("Uploaded via rclone", "dest", dst, "blake3", checksum)
	return nil
}

// lsjsonEntry is the subset of rclone lsjson output the pruner needs.
type lsjsonEntry struct {
	Name    string    `json:"Name"`
	ModTime time.Time `json:"ModTime"`
	IsDir   bool      `json:"IsDir"`
}

func (r *Rclone) List(ctx context.Context, folder string) ([]Entry, error) {
	out, err := r.exec(ctx, "rclone", "lsjson", r.folderRef(folder))
	if err != nil {
		// A folder that has never been uploaded to does not exist yet.
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("rclone lsjson %s failed: %w", r.folderRef(folder), err)
	}

	var items []lsjsonEntry
	if err := json.Unmarshal(out, &items); err != nil {
		return nil, fmt.Errorf("failed to parse rclone lsjson output: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		if it.IsDir {
			continue
		}
		entries = append(entries, Entry{Name: it.Name, ModTime: it.ModTime})
	}
	return entries, nil
}

func (r *Rclone) Delete(ctx context.Context, folder, name string) error {
	target := r.fileRef(folder, name)
	if _, err := r.exec(ctx, "rclone", "deletefile", target); err != nil {
		return fmt.Errorf("rclone deletefile %s failed: %w", target, err)
	}
	return nil
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "directory not found") ||
		strings.Contains(msg, "file not found") ||
		strings.Contains(msg, "object not found") ||
		strings.Contains(msg, "doesn't exist")
}
