package source

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sync"
)

// IngestType tells whether a file is seen for the first time or changed.
type IngestType string

const (
	IngestTypeNew    IngestType = "new"
	IngestTypeUpdate IngestType = "update"
)

// Decision is the outcome of DecisionEngine.Decide.
type Decision struct {
	Path          string
	Hash          string
	IngestType    IngestType
	ShouldProcess bool
	Reason        string
}

// DecisionEngine remembers the content hash of every file it has let
// through, so saving a file without changing it does not re-run the
// pipeline.
type DecisionEngine struct {
	mu     sync.Mutex
	hashes map[string]string
}

// NewDecisionEngine creates an empty decision engine.
func NewDecisionEngine() *DecisionEngine {
	return &DecisionEngine{hashes: make(map[string]string)}
}

// Decide determines whether path should be processed.
func (de *DecisionEngine) Decide(path string) (Decision, error) {
	d := Decision{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return d, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() == 0 {
		d.Reason = "file is empty"
		return d, nil
	}

	hash, err := HashFile(path)
	if err != nil {
		return d, fmt.Errorf("failed to calculate hash: %w", err)
	}
	d.Hash = hash

	de.mu.Lock()
	defer de.mu.Unlock()

	prev, seen := de.hashes[path]
	switch {
	case !seen:
		d.IngestType, d.ShouldProcess, d.Reason = IngestTypeNew, true, "new file detected"
	case prev != hash:
		d.IngestType, d.ShouldProcess, d.Reason = IngestTypeUpdate, true, "content changed"
	default:
		d.Reason = "content unchanged"
		return d, nil
	}
	de.hashes[path] = hash
	return d, nil
}

// Forget drops path so its next event is treated as new.
func (de *DecisionEngine) Forget(path string) {
	de.mu.Lock()
	defer de.mu.Unlock()
	delete(de.hashes, path)
}

// HashFile returns the hex SHA-256 of the file's content.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
