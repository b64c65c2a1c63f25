// Package backup drives the archive-upload-record-prune cycle over every
// tracked file, strictly one at a time.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"cloudback/internal/alert"
	"cloudback/internal/archive"
	"cloudback/internal/config"
	"cloudback/internal/lock"
	"cloudback/internal/logging"
	"cloudback/internal/remote"
	"cloudback/internal/retention"
	"cloudback/internal/schedule"
	"cloudback/internal/state"
)

// Status is the terminal state of one tracked file's pipeline.
type Status int

const (
	StatusSkipped Status = iota // not due
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the explicit outcome of one tracked file's pipeline run.
type Result struct {
	Object   config.TrackedObject
	Status   Status
	Artifact string // uploaded artifact name, empty when skipped
	Checksum string
	Pruned   int // stale remote archives removed (or previewed in dry-run)
	Err      error
}

// newStore is swapped in tests.
var newStore = remote.NewStore

// runner holds the collaborators of one backup run.
type runner struct {
	cfg       *config.Config
	store     remote.Store
	sink      alert.Sink
	recipient age.Recipient
	dryRun    bool
	now       func() time.Time
}

// Run executes one full backup pass. Environment preconditions (config, lock,
// store reachability) are fatal and returned; per-object failures are alerted
// and logged but never abort the batch, so a completed pass returns nil even
// when some objects failed.
func Run(ctx context.Context, configPath string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := setupDirectories(cfg.BaseDir, cfg.StateDir(), cfg.ScratchDir(), cfg.LogDir()); err != nil {
		return err
	}

	logFile, err := logging.Setup(cfg.LogDir())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFile.Close()
	slog.Info("Backup run started", "config", configPath, "backend", cfg.Backend, "objects", len(cfg.Objects), "dryRun", dryRun)

	var sink alert.Sink = alert.Noop{}
	if cfg.Telegram.Configured() {
		sink = alert.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	var recipient age.Recipient
	if cfg.Encrypt != "" {
		recipient, err = age.ParseX25519Recipient(cfg.Encrypt)
		if err != nil {
			return fatal(ctx, sink, fmt.Errorf("failed to parse age public key: %w", err))
		}
	}

	releaseLock, err := lock.Acquire(cfg.LockPath())
	if err != nil {
		return fatal(ctx, sink, fmt.Errorf("failed to acquire run lock: %w", err))
	}
	defer func() {
		if err := releaseLock(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	// Scratch storage is not a durable cache: whatever this or an earlier
	// run left behind goes away when we exit. Registered only while holding
	// the lock; an invocation refused the lock must not touch the holder's
	// in-flight artifacts. Dry-run mutates nothing, not even leftovers.
	if !dryRun {
		defer cleanupScratch(cfg.ScratchDir())
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return fatal(ctx, sink, err)
	}
	if err := store.Reachable(ctx); err != nil {
		return fatal(ctx, sink, err)
	}

	r := &runner{
		cfg:       cfg,
		store:     store,
		sink:      sink,
		recipient: recipient,
		dryRun:    dryRun,
		now:       time.Now,
	}
	logSummary(r.processAll(ctx), dryRun)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}
	return nil
}

// fatal reports a precondition failure to the operator before the run aborts.
func fatal(ctx context.Context, sink alert.Sink, err error) error {
	slog.Error("Backup run aborted", "error", err)
	if nErr := sink.Notify(ctx, fmt.Sprintf("cloudback: backup run aborted: %v", err)); nErr != nil {
		slog.Warn("Failed to deliver alert", "error", nErr)
	}
	return err
}

func setupDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// processAll walks the tracked objects in configured order. One object's
// failure never aborts the batch; it is alerted and the walk continues.
func (r *runner) processAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.cfg.Objects))
	for _, obj := range r.cfg.Objects {
		if ctx.Err() != nil {
			slog.Warn("Run cancelled, remaining objects not processed", "error", ctx.Err())
			break
		}

		res := r.process(ctx, obj)
		if res.Status == StatusFailed {
			slog.Error("Backup failed", "path", obj.LocalPath, "folder", obj.RemoteFolder, "error", res.Err)
			r.alertFailure(ctx, res)
		}
		results = append(results, res)
	}
	return results
}

// process runs the per-object pipeline: due-check, archive, upload, record
// state, prune. The last-run state advances only after a confirmed upload.
func (r *runner) process(ctx context.Context, obj config.TrackedObject) Result {
	res := Result{Object: obj, Status: StatusDone}

	lastRun, err := state.LastRun(r.cfg.StateDir(), obj.LocalPath)
	if err != nil {
		return failed(res, err)
	}

	now := r.now()
	if !schedule.IsDue(now, lastRun, obj.IntervalDays) {
		slog.Info("Backup not due, skipping",
			"path", obj.LocalPath,
			"lastRun", lastRun.Format(time.RFC3339),
			"nextDue", schedule.NextDue(lastRun, obj.IntervalDays).Format(time.RFC3339))
		res.Status = StatusSkipped
		return res
	}

	if r.dryRun {
		return r.preview(ctx, obj, res, now)
	}

	slog.Info("Backup due, archiving", "path", obj.LocalPath, "folder", obj.RemoteFolder)
	artifact, err := archive.Create(obj.LocalPath, r.cfg.ScratchDir(), now, r.recipient)
	if err != nil {
		return failed(res, err)
	}
	res.Artifact = artifact.Name()
	res.Checksum = artifact.Checksum
	slog.Info("Artifact staged", "artifact", artifact.Name(), "blake3", artifact.Checksum)

	if err := r.store.Upload(ctx, artifact.Path, obj.RemoteFolder, artifact.Checksum); err != nil {
		return failed(res, fmt.Errorf("upload of %s failed: %w", artifact.Name(), err))
	}
	slog.Info("Artifact uploaded", "artifact", artifact.Name(), "folder", obj.RemoteFolder)

	if err := state.Record(r.cfg.StateDir(), obj.LocalPath, now); err != nil {
		return failed(res, err)
	}

	res.Pruned = r.prune(ctx, obj)
	return res
}

// preview is the dry-run pipeline: every decision, no side effect. The
// source-existence check is deliberately not performed, only the live run
// stats the file.
func (r *runner) preview(ctx context.Context, obj config.TrackedObject, res Result, now time.Time) Result {
	name := archive.ArtifactName(obj.LocalPath, now)
	if r.recipient != nil {
		name += ".age"
	}
	res.Artifact = name
	slog.Info("[dry-run] Would archive and upload", "path", obj.LocalPath, "artifact", name, "folder", obj.RemoteFolder)

	entries, err := r.store.List(ctx, obj.RemoteFolder)
	if err != nil {
		slog.Warn("[dry-run] Retention preview unavailable", "folder", obj.RemoteFolder, "error", err)
		return res
	}
	victims := retention.SelectForDeletion(entries, retention.DefaultKeep)
	for _, victim := range victims {
		slog.Info("[dry-run] Would prune stale archive", "folder", obj.RemoteFolder, "name", victim)
	}
	res.Pruned = len(victims)
	return res
}

// prune enforces the retention window after a successful upload. Listing and
// delete problems are logged, never alerted, and never fail the object.
func (r *runner) prune(ctx context.Context, obj config.TrackedObject) int {
	entries, err := r.store.List(ctx, obj.RemoteFolder)
	if err != nil {
		slog.Warn("Retention listing failed, skipping prune", "folder", obj.RemoteFolder, "error", err)
		return 0
	}

	deleted := 0
	for _, name := range retention.SelectForDeletion(entries, retention.DefaultKeep) {
		if err := r.store.Delete(ctx, obj.RemoteFolder, name); err != nil {
			slog.Warn("Failed to delete stale archive", "folder", obj.RemoteFolder, "name", name, "error", err)
			continue
		}
		slog.Info("Pruned stale archive", "folder", obj.RemoteFolder, "name", name)
		deleted++
	}
	return deleted
}

func (r *runner) alertFailure(ctx context.Context, res Result) {
	msg := fmt.Sprintf("cloudback: backup of %s (remote folder %s) failed: %v",
		res.Object.LocalPath, res.Object.RemoteFolder, res.Err)
	if err := r.sink.Notify(ctx, msg); err != nil {
		slog.Warn("Failed to deliver alert", "error", err)
	}
}

func failed(res Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	return res
}

// cleanupScratch empties the scratch directory, continuing past individual
// failures.
func cleanupScratch(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Failed to read scratch directory", "dir", dir, "error", err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove scratch artifact", "path", path, "error", err)
			continue
		}
		slog.Debug("Removed scratch artifact", "path", path)
	}
}

func logSummary(results []Result, dryRun bool) {
	var done, skipped, failures int
	for _, res := range results {
		switch res.Status {
		case StatusDone:
			done++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failures++
		}
	}
	slog.Info("Backup run complete", "done", done, "skipped", skipped, "failed", failures, "dryRun", dryRun)
}
