package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ExportResult holds the outcome of a single export.
type ExportResult struct {
	InputPath  string
	OutputPath string
	Pages      int
	Err        error
	Duration   time.Duration
}

// exportBatch processes projects concurrently using the exporter pool.
func exportBatch(ctx context.Context, pool Pool, projects []ProjectToExport, writeHTML bool) []ExportResult {
	if len(projects) == 0 {
		return nil
	}

	concurrency := min(pool.Size(), len(projects))
	results := make([]ExportResult, len(projects))
	jobs := make(chan int, len(projects))
	for i := range projects {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range concurrency {
		wg.Go(func() {
			exp, err := pool.Acquire(ctx)
			if err != nil {
				// No exporter for this worker: fail whatever it would have taken.
				for idx := range jobs {
					results[idx] = ExportResult{InputPath: projects[idx].InputPath, Err: err}
				}
				return
			}
			defer pool.Release(exp)

			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = ExportResult{InputPath: projects[idx].InputPath, Err: ctx.Err()}
					continue
				}
				results[idx] = exportProject(ctx, exp, projects[idx], writeHTML)
			}
		})
	}

	wg.Wait()
	return results
}

// exportProject exports a single project and writes its artifacts.
func exportProject(ctx context.Context, exp Exporter, p ProjectToExport, writeHTML bool) ExportResult {
	start := time.Now()
	result := ExportResult{InputPath: p.InputPath}
	finish := func(err error) ExportResult {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	doc, err := readProject(p.InputPath)
	if err != nil {
		return finish(err)
	}

	art, err := exp.Export(ctx, doc)
	if err != nil {
		return finish(err)
	}
	result.OutputPath = p.target(art.Filename)
	result.Pages = art.Pages

	if err := writeOutput(result.OutputPath, art.Data); err != nil {
		return finish(err)
	}

	if writeHTML {
		html, err := exp.RenderHTML(ctx, doc)
		if err != nil {
			return finish(fmt.Errorf("rendering HTML: %w", err))
		}
		if err := writeOutput(htmlOutputPath(result.OutputPath), []byte(html)); err != nil {
			return finish(err)
		}
	}
	return finish(nil)
}

// batchError summarizes failed exports; it unwraps to the first failure
// so the exit code reflects its cause.
type batchError struct {
	failed int
	total  int
	first  error
}

func (e *batchError) Error() string {
	return fmt.Sprintf("%d of %d export(s) failed", e.failed, e.total)
}

func (e *batchError) Unwrap() error { return e.first }

// printResults outputs export results and returns a *batchError when any failed.
func printResults(results []ExportResult, common commonFlags, env *Environment) error {
	var (
		failed int
		first  error
	)
	for _, r := range results {
		if r.Err != nil {
			failed++
			if first == nil {
				first = r.Err
			}
			fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", r.InputPath, r.Err, hintFor(r.Err))
			continue
		}

		if common.quiet {
			continue
		}

		if common.verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s (%d pages, %v)\n", r.InputPath, r.OutputPath, r.Pages, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stdout, "Created %s\n", r.OutputPath)
		}
	}

	if !common.quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", len(results)-failed, failed)
	}

	if failed > 0 {
		return &batchError{failed: failed, total: len(results), first: first}
	}
	return nil
}
