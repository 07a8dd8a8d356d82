package index

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Batch stages output files next to their destinations and moves them into
// place together on Commit. Until then no destination is touched.
type Batch struct {
	staged []stagedFile
}

type stagedFile struct {
	temporary   string
	destination string
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Stage writes one file to a temporary sibling of path.
func (batch *Batch) Stage(path string, write func(io.Writer) error) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", directory, err)
	}

	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	writeErr := write(file)
	closeErr := file.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(file.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Chmod(file.Name(), 0644); err != nil {
		os.Remove(file.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	batch.staged = append(batch.staged, stagedFile{temporary: file.Name(), destination: path})
	return nil
}

// Paths returns the destinations staged so far.
func (batch *Batch) Paths() []string {
	paths := make([]string, 0, len(batch.staged))
	for _, staged := range batch.staged {
		paths = append(paths, staged.destination)
	}
	return paths
}

// Commit renames every staged file onto its destination.
func (batch *Batch) Commit() error {
	for index, staged := range batch.staged {
		if err := os.Rename(staged.temporary, staged.destination); err != nil {
			batch.staged = batch.staged[index:]
			batch.Abort()
			return fmt.Errorf("failed to replace %s: %w", staged.destination, err)
		}
	}
	batch.staged = nil
	return nil
}

// Abort removes every staged file that has not been committed.
func (batch *Batch) Abort() {
	for _, staged := range batch.staged {
		os.Remove(staged.temporary)
	}
	batch.staged = nil
}
