package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/fileutil"
	"github.com/alnah/go-sopdoc/internal/hints"
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// Sentinel errors for project files.
var (
	ErrNoInput          = errors.New("no input specified")
	ErrReadProject      = errors.New("failed to read project file")
	ErrWriteOutput      = errors.New("failed to write output file")
	ErrOutputExists     = errors.New("output file already exists")
	ErrUnknownStep      = errors.New("no such step")
	ErrInvalidExtension = errors.New("project file must have .json extension")
)

// projectExt is the extension of saved projects.
const projectExt = ".json"

// readProject loads and validates a project file.
func readProject(path string) (sopdoc.Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided project path
	if err != nil {
		return sopdoc.Document{}, fmt.Errorf("%w: %w", ErrReadProject, err)
	}
	doc, err := sopdoc.ParseDocument(data)
	if err != nil {
		return sopdoc.Document{}, withHint(fmt.Errorf("%s: %w", path, err), hints.ForMalformedDocument())
	}
	return doc, nil
}

// writeProject saves the session document to path atomically.
func writeProject(path string, sess *sopdoc.Session) error {
	var buf bytes.Buffer
	if err := sess.Save(&buf); err != nil {
		return err
	}
	return writeOutput(path, buf.Bytes())
}

// writeOutput creates parent directories and writes data atomically.
func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return withHint(fmt.Errorf("%w: creating directory: %w", ErrWriteOutput, err), hints.ForOutputDirectory())
	}
	if err := fileutil.WriteFileAtomic(path, data, filePermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

// checkOverwrite refuses to replace an existing file unless force is set.
func checkOverwrite(path string, force bool) error {
	if !force && fileutil.FileExists(path) {
		return fmt.Errorf("%w: %s (use --force to replace it)", ErrOutputExists, path)
	}
	return nil
}

// validateProjectExtension checks that path names a .json project.
func validateProjectExtension(path string) error {
	if ext := filepath.Ext(path); ext != projectExt {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, ext)
	}
	return nil
}

// stepID resolves a 1-based step number to its id.
func stepID(doc sopdoc.Document, n int) (string, error) {
	if n < 1 || n > len(doc.Steps) {
		return "", fmt.Errorf("%w: step %d (document has %d steps)", ErrUnknownStep, n, len(doc.Steps))
	}
	return doc.Steps[n-1].ID, nil
}
