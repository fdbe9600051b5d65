package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-sopdoc/internal/config"
)

// ErrInvalidWorkerCount indicates a --workers value out of range.
var ErrInvalidWorkerCount = errors.New("invalid worker count")

// ProjectToExport represents a single project to export.
type ProjectToExport struct {
	InputPath string
	// OutputPath is empty when the artifact is named after the document title;
	// OutputDir then holds its directory.
	OutputPath string
	OutputDir  string
}

// target returns the PDF path for an artifact with the given title-based name.
func (p ProjectToExport) target(artifactName string) string {
	if p.OutputPath != "" {
		return p.OutputPath
	}
	return filepath.Join(p.OutputDir, artifactName)
}

// discoverProjects finds the projects to export. A file argument is named
// after its title; files found by walking a directory keep their base name
// so that procedures sharing a title do not collide.
func discoverProjects(inputs []string, outputDir string) ([]ProjectToExport, error) {
	var projects []ProjectToExport
	single := len(inputs) == 1

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			if err := validateProjectExtension(input); err != nil {
				return nil, err
			}
			p := ProjectToExport{InputPath: input, OutputDir: filepath.Dir(input)}
			switch {
			case single && strings.HasSuffix(outputDir, ".pdf"):
				p.OutputPath = outputDir
			case outputDir != "":
				p.OutputDir = outputDir
			}
			projects = append(projects, p)
			continue
		}

		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("scanning %s: %w", path, err)
			}
			if d.IsDir() || filepath.Ext(path) != projectExt {
				return nil
			}
			projects = append(projects, ProjectToExport{
				InputPath:  path,
				OutputPath: resolveOutputPath(path, outputDir, input),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// resolveOutputPath determines the PDF output path for a project found in a directory.
func resolveOutputPath(inputPath, outputDir, baseInputDir string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), projectExt) + ".pdf"

	if outputDir == "" || strings.HasSuffix(outputDir, ".pdf") {
		return filepath.Join(filepath.Dir(inputPath), base)
	}

	if relPath, err := filepath.Rel(baseInputDir, inputPath); err == nil {
		return filepath.Join(outputDir, filepath.Dir(relPath), base)
	}
	return filepath.Join(outputDir, base)
}

// validateWorkers checks that the worker count is within valid bounds.
// An explicit count may exceed the automatic cap of sopdoc.MaxPoolSize.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkerCount, n)
	}
	if n > config.MaxWorkers {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, config.MaxWorkers)
	}
	return nil
}

// htmlOutputPath returns the HTML path corresponding to a PDF path.
func htmlOutputPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, ".pdf") + ".html"
}
