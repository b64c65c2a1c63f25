// Package archive stages one tracked file as a dated zip artifact in scratch
// storage.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"cloudback/internal/crypto"
)

var (
	// ErrSourceMissing means the tracked file was not there at archive time.
	ErrSourceMissing = errors.New("source file does not exist")
	// ErrEmptyArchive means the zip came out zero-sized, which signals a
	// silent compression failure.
	ErrEmptyArchive = errors.New("produced archive is empty")
)

// Artifact is one staged archive, ready for upload.
type Artifact struct {
	Path     string
	Checksum string // BLAKE3, hex
}

// Name is the artifact's file name, which the upload keeps on the remote.
func (a *Artifact) Name() string {
	return filepath.Base(a.Path)
}

// ArtifactName returns the dated artifact name for a tracked file. Reruns on
// the same day produce the same name and overwrite the previous artifact.
func ArtifactName(localPath string, now time.Time) string {
	return fmt.Sprintf("%s_%s.zip", filepath.Base(localPath), now.Format("20060102"))
}

// Create stages localPath as a zip under scratchDir and returns the artifact
// with its checksum. With a non-nil recipient the zip is encrypted for it and
// the plaintext removed, so the artifact becomes <name>.zip.age. Prior
// artifacts are never touched; scratch cleanup is the caller's exit duty.
func Create(localPath, scratchDir string, now time.Time, recipient age.Recipient) (*Artifact, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, localPath)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, only single files can be archived", localPath)
	}

	artifactPath := filepath.Join(scratchDir, ArtifactName(localPath, now))
	if err := writeZip(localPath, artifactPath, info); err != nil {
		return nil, err
	}
	if err := checkArtifact(artifactPath); err != nil {
		return nil, err
	}

	if recipient != nil {
		sealed, err := crypto.Seal(artifactPath, recipient)
		if err != nil {
			return nil, err
		}
		artifactPath = sealed
	}

	checksum, err := crypto.BLAKE3File(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to hash artifact: %w", err)
	}

	return &Artifact{Path: artifactPath, Checksum: checksum}, nil
}

// writeZip packs the single source file into a fresh zip at dst, keeping
// only its base name.
func writeZip(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", dst, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header: %w", err)
	}
	header.Name = filepath.Base(src)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to compress %s: %w", src, err)
	}

	// Flush before the caller stats and hashes the file.
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyArchive, path)
	}
	return nil
}
