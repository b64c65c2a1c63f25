package crypto

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"filippo.io/age"
	"github.com/zeebo/blake3"
)

// Seal encrypts a staged archive for the recipient and removes the
// plaintext, returning the path of the encrypted file.
func Seal(plainFile string, recipient age.Recipient) (string, error) {
	encryptedFile := plainFile + ".age"
	if err := Encrypt(plainFile, encryptedFile, recipient); err != nil {
		return "", fmt.Errorf("age encryption failed: %w", err)
	}
	slog.Debug("Encrypted archive", "encryptedFile", encryptedFile)

	if err := os.Remove(plainFile); err != nil {
		return "", fmt.Errorf("failed to remove plaintext archive: %w", err)
	}

	return encryptedFile, nil
}

func Encrypt(inputFile, outputFile string, recipient age.Recipient) error {
	in, err := os.Open(inputFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	w, err := age.Encrypt(out, recipient)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, in); err != nil {
		return err
	}

	return w.Close()
}

// BLAKE3File computes the BLAKE3 hash of a file
func BLAKE3File(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
